package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/rotable/engine"
	"github.com/wippyai/rotable/loader"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to TOML namespace definition")
		dbFile      = flag.String("db", "", "Path to packed image store")
		packFile    = flag.String("pack", "", "Compile -config into this image store and exit")
		getPath     = flag.String("get", "", "Resolve global.key.key... and print the value")
		listName    = flag.String("list", "", "List the entries of a global table")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose development logging")
	)
	flag.Parse()

	if (*configFile == "") == (*dbFile == "") {
		fmt.Fprintln(os.Stderr, "Usage: rotable -config <file.toml> -pack <out.db>")
		fmt.Fprintln(os.Stderr, "       rotable (-config <file.toml> | -db <file.db>) -get global.key")
		fmt.Fprintln(os.Stderr, "       rotable (-config <file.toml> | -db <file.db>) -list global")
		fmt.Fprintln(os.Stderr, "       rotable (-config <file.toml> | -db <file.db>) -i  (interactive mode)")
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log = l
		defer log.Sync()
	}
	engine.SetLogger(log)
	loader.SetLogger(log)

	if err := run(*configFile, *dbFile, *packFile, *getPath, *listName, *interactive, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, dbFile, packFile, getPath, listName string, interactive bool, log *zap.Logger) error {
	ctx := context.Background()

	var (
		ns  *namespace
		err error
	)
	if configFile != "" {
		ns, err = namespaceFromConfig(configFile)
	} else {
		ns, err = namespaceFromStore(dbFile)
	}
	if err != nil {
		return err
	}

	if packFile != "" {
		if configFile == "" {
			return fmt.Errorf("-pack needs -config")
		}
		if err := ns.pack(packFile); err != nil {
			return fmt.Errorf("pack: %w", err)
		}
		fmt.Printf("Packed ROM (%d bytes) and %d modules into %s\n", len(ns.rom.Data), len(ns.modules), packFile)
		return nil
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(ctx, ns, log)
	}

	s, err := openSession(ctx, ns, log)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer s.Close(ctx)

	switch {
	case getPath != "":
		v, err := s.get(getPath)
		if err != nil {
			return err
		}
		fmt.Println(s.format(v))

	case listName != "":
		t, err := s.eng.ResolveGlobal(listName)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", listName, s.format(engine.TableRef(t)))
		for _, e := range s.entries(t) {
			fmt.Printf("  %s = %s\n", formatKey(e.key), s.format(e.value))
		}

	default:
		fmt.Printf("ROM: %d bytes at 0x%08x\n", s.rom.Size(), uint32(s.rom.Base()))
		fmt.Printf("\nModules:\n")
		for _, m := range s.reg.Modules() {
			fmt.Printf("  %-16s base 0x%08x origin 0x%08x offset %d\n", m.Name(), uint32(m.Base()), uint32(m.Origin()), m.Offset())
		}
		fmt.Printf("\nGlobals:\n")
		for _, name := range s.globals() {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
