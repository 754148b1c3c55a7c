package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/eigerco/boxtx/internal/store"
	"github.com/eigerco/boxtx/internal/txn"
	"github.com/eigerco/boxtx/pkg/log"
	"github.com/eigerco/boxtx/pkg/serialization/codec"
)

const noteType txn.EntityType = 1

type Note struct {
	Text string `json:"text"`
}

type Config struct {
	Store    store.Options `json:"store"`
	LogLevel string        `json:"log_level"`
	LogType  string        `json:"log_type"`
}

func defaultConfig() Config {
	return Config{
		Store:    store.Options{Directory: "boxctl-data"},
		LogLevel: "warn",
		LogType:  "console",
	}
}

func loadConfig(filename string, cfg *Config) error {
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	return nil
}

// main runs one command against a note store.
// go run main.go -mem put "hello"
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "boxctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("boxctl", flag.ContinueOnError)
	configFile := fs.String("config", "", "JSON config file")
	dir := fs.String("dir", "", "Store directory")
	mem := fs.Bool("mem", false, "Use an in-memory store")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaultConfig()
	if *configFile != "" {
		if err := loadConfig(*configFile, &cfg); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Store.Directory = *dir
		case "mem":
			cfg.Store.InMemory = *mem
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := initLogging(cfg); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return errors.New("command is required: put, set, get, rm, list or count")
	}

	s, err := store.Open(cfg.Store, store.NewEntity[Note](noteType, "Note", codec.JSONCodec[Note]{}))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close() //nolint:errcheck

	return execute(s, fs.Arg(0), fs.Args()[1:], out)
}

func initLogging(cfg Config) error {
	level, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logType := log.ConsoleLogger
	if cfg.LogType == "json" {
		logType = log.JSONLogger
	}
	log.Init(log.Options{LogLevel: level, Type: logType, Out: os.Stderr})
	return nil
}

func execute(s *store.Store, cmd string, args []string, out io.Writer) error {
	notes := store.BoxFor[Note](s, noteType)

	switch cmd {
	case "put":
		if len(args) == 0 {
			return errors.New("put: text is required")
		}
		id, err := notes.PutNew(Note{Text: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
		return nil
	case "set":
		if len(args) < 2 {
			return errors.New("set: id and text are required")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return notes.Put(id, Note{Text: strings.Join(args[1:], " ")})
	case "get":
		if len(args) != 1 {
			return errors.New("get: id is required")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		n, err := notes.Get(id)
		if err != nil {
			return fmt.Errorf("get %d: %w", id, err)
		}
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	case "rm":
		if len(args) != 1 {
			return errors.New("rm: id is required")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return notes.Remove(id)
	case "list":
		return s.RunInReadTx(func(tx *txn.Transaction) error {
			c, err := notes.Cursor(tx)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			ok, err := c.First()
			for ; ok && err == nil; ok, err = c.Next() {
				n, err := c.Current()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d\t%s\n", c.ID(), n.Text)
			}
			return err
		})
	case "count":
		n, err := notes.Count()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
