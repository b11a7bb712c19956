// Command prism is the client for the genomic data custody pipeline:
// it manages the owner's identity and data key, uploads encrypted
// records to the blob store, drives the permission ledger, and
// retrieves and decrypts records it is authorized to read.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/prismgenomics/libprism-go/config"
	"github.com/prismgenomics/libprism-go/custody"
	"github.com/prismgenomics/libprism-go/identity"
	"github.com/prismgenomics/libprism-go/ipfs"
	"github.com/prismgenomics/libprism-go/keystore"
	"github.com/prismgenomics/libprism-go/ledger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "prism: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: prism <command> [flags]

commands:
  init       write a default config file
  keygen     generate an identity key
  register   register this identity as a data owner
  upload     encrypt and upload a file, publishing its pointer
  retrieve   fetch, verify and decrypt a record
  request    request access to an owner's record
  approve    approve a requester's pending request
  revoke     revoke a requester's approved access
  status     show grant status for a requester
  audit      print the ledger's audit event log
  keys       list owners with stored data keys
`)
}

// env assembles everything a command needs from the config file.
type env struct {
	cfg    config.Config
	log    *logrus.Logger
	blob   ipfs.BlobStore
	ledger ledger.Service
	keys   *keystore.Keystore

	closeLedger func() error
}

func run(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dataDir := fs.String("datadir", config.DefaultDataDir(), "data directory")

	switch command {
	case "init":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return cmdInit(*dataDir)

	case "keygen":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return cmdKeygen(*dataDir)

	case "register":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withEnv(ctx, *dataDir, func(e *env) error {
			signer, err := loadSigner(*dataDir)
			if err != nil {
				return err
			}
			if err := e.ledger.RegisterOwner(ctx, signer); err != nil {
				return err
			}
			fmt.Println(signer.Address())
			return nil
		})

	case "upload":
		file := fs.String("file", "", "file to upload")
		pass := fs.String("pass", "", "keystore passphrase")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *file == "" || *pass == "" {
			return errors.New("upload requires -file and -pass")
		}
		return withEnv(ctx, *dataDir, func(e *env) error {
			return cmdUpload(ctx, e, *dataDir, *file, *pass)
		})

	case "retrieve":
		owner := fs.String("owner", "", "owner address (defaults to own identity)")
		out := fs.String("out", "", "output file")
		pass := fs.String("pass", "", "keystore passphrase")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *out == "" || *pass == "" {
			return errors.New("retrieve requires -out and -pass")
		}
		return withEnv(ctx, *dataDir, func(e *env) error {
			return cmdRetrieve(ctx, e, *dataDir, *owner, *out, *pass)
		})

	case "request":
		owner := fs.String("owner", "", "owner address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withSignedGrant(ctx, *dataDir, *owner, "owner",
			func(e *env, s identity.Signer, target identity.Address) error {
				return e.ledger.RequestAccess(ctx, s, target)
			})

	case "approve":
		requester := fs.String("requester", "", "requester address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withSignedGrant(ctx, *dataDir, *requester, "requester",
			func(e *env, s identity.Signer, target identity.Address) error {
				return e.ledger.ApproveAccess(ctx, s, target)
			})

	case "revoke":
		requester := fs.String("requester", "", "requester address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withSignedGrant(ctx, *dataDir, *requester, "requester",
			func(e *env, s identity.Signer, target identity.Address) error {
				return e.ledger.RevokeAccess(ctx, s, target)
			})

	case "status":
		owner := fs.String("owner", "", "owner address")
		requester := fs.String("requester", "", "requester address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *owner == "" || *requester == "" {
			return errors.New("status requires -owner and -requester")
		}
		return withEnv(ctx, *dataDir, func(e *env) error {
			status, err := e.ledger.GrantState(ctx, identity.Address(*owner), identity.Address(*requester))
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		})

	case "audit":
		owner := fs.String("owner", "", "filter events by owner address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withEnv(ctx, *dataDir, func(e *env) error {
			return cmdAudit(ctx, e, identity.Address(*owner))
		})

	case "keys":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withEnv(ctx, *dataDir, func(e *env) error {
			owners, err := e.keys.List()
			if err != nil {
				return err
			}
			for _, o := range owners {
				fmt.Println(o)
			}
			return nil
		})

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdInit(dataDir string) error {
	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir
	path := config.ConfigPath(dataDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// identityPath is where the CLI stores the hex private key.
func identityPath(dataDir string) string {
	return filepath.Join(dataDir, "identity.key")
}

func cmdKeygen(dataDir string) error {
	path := identityPath(dataDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("identity key already exists at %s", path)
	}
	signer, err := identity.NewKeySigner()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(signer.PrivateKeyHex()+"\n"), 0600); err != nil {
		return err
	}
	fmt.Println(signer.Address())
	return nil
}

func loadSigner(dataDir string) (*identity.KeySigner, error) {
	b, err := os.ReadFile(identityPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("no identity key; run `prism keygen` first")
		}
		return nil, err
	}
	return identity.KeySignerFromHex(strings.TrimSpace(string(b)))
}

func cmdUpload(ctx context.Context, e *env, dataDir, file, pass string) error {
	signer, err := loadSigner(dataDir)
	if err != nil {
		return err
	}
	eng, err := newEngine(e)
	if err != nil {
		return err
	}
	plaintext, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	res, err := eng.UploadWithPassphrase(ctx, signer, plaintext, pass)
	if err != nil {
		var pubErr *custody.PublishError
		if errors.As(err, &pubErr) {
			return fmt.Errorf("blob %s stored but not published; retry with the same file once the ledger is reachable: %w",
				pubErr.CID, pubErr.Err)
		}
		return err
	}
	fmt.Printf("cid: %s\nfingerprint: %s\n", res.CID, res.Fingerprint)
	return nil
}

func cmdRetrieve(ctx context.Context, e *env, dataDir, owner, out, pass string) error {
	signer, err := loadSigner(dataDir)
	if err != nil {
		return err
	}
	ownerAddr := identity.Address(owner)
	if owner == "" {
		ownerAddr = signer.Address()
	}
	eng, err := newEngine(e)
	if err != nil {
		return err
	}
	plaintext, err := eng.RetrieveWithPassphrase(ctx, ownerAddr, signer.Address(), pass)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, plaintext, 0600); err != nil {
		_ = os.Remove(out)
		return err
	}
	fmt.Println(out)
	return nil
}

func cmdAudit(ctx context.Context, e *env, owner identity.Address) error {
	events, err := e.ledger.Events(ctx)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if owner != "" && ev.Owner != owner {
			continue
		}
		line := fmt.Sprintf("%d\t%s\t%s\t%s", ev.Seq, ev.Timestamp.Format("2006-01-02T15:04:05Z"), ev.Type, ev.Owner)
		if ev.Requester != "" {
			line += "\t" + string(ev.Requester)
		}
		if ev.ContentID != "" {
			line += "\t" + ev.ContentID
		}
		fmt.Println(line)
	}
	return nil
}

// withSignedGrant runs a grant mutation that needs the local signer
// plus one target address.
func withSignedGrant(ctx context.Context, dataDir, target, flagName string,
	fn func(e *env, s identity.Signer, target identity.Address) error) error {

	if target == "" {
		return fmt.Errorf("missing -%s", flagName)
	}
	return withEnv(ctx, dataDir, func(e *env) error {
		signer, err := loadSigner(dataDir)
		if err != nil {
			return err
		}
		if err := fn(e, signer, identity.Address(target)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	})
}

// withEnv builds the environment from the config file and tears it
// down afterwards.
func withEnv(ctx context.Context, dataDir string, fn func(e *env) error) error {
	e, err := buildEnv(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if e.closeLedger != nil {
			_ = e.closeLedger()
		}
	}()
	return fn(e)
}

func buildEnv(dataDir string) (*env, error) {
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, err
	}
	cfg.DataDir = dataDir
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(f)
	}

	e := &env{
		cfg:  cfg,
		log:  log,
		keys: keystore.Open(config.KeystorePath(dataDir)),
	}

	switch cfg.Backend {
	case "pinata":
		clientCfg, err := ipfs.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if cfg.Gateway != "" {
			clientCfg.Gateway = cfg.Gateway
		}
		e.blob = ipfs.NewPinningClient(clientCfg, log)
	default:
		blob, err := ipfs.NewLocalStore(config.BlobDir(dataDir))
		if err != nil {
			return nil, err
		}
		e.blob = blob
	}

	if cfg.LedgerURL != "" {
		e.ledger = ledger.NewClient(ledger.ClientConfig{URL: cfg.LedgerURL})
	} else {
		mode := ledger.SingleVersion
		if cfg.History == "keep" {
			mode = ledger.KeepHistory
		}
		bolt, err := ledger.OpenBoltLedger(config.LedgerPath(dataDir), ledger.Options{History: mode, Log: log})
		if err != nil {
			return nil, err
		}
		e.ledger = bolt
		e.closeLedger = bolt.Close
	}

	return e, nil
}

func newEngine(e *env) (*custody.Engine, error) {
	return custody.NewEngine(custody.EngineConfig{
		Blob:          e.blob,
		Ledger:        e.ledger,
		Keys:          e.keys,
		Log:           e.log,
		UnpinReplaced: e.cfg.UnpinReplaced,
	})
}
