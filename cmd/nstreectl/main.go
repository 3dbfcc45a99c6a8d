// Command nstreectl is a small operator tool for inspecting and
// repairing a nested-set table: validating its bounds, rebuilding them
// from parent pointers, moving a row, or printing one row's structural
// fields.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/rokde/baum/internal/argparser"
	"github.com/rokde/baum/libraries/config"
	"github.com/rokde/baum/libraries/nestedset/dialect"
	"github.com/rokde/baum/libraries/nestedset/events"
	"github.com/rokde/baum/libraries/nestedset/mover"
	"github.com/rokde/baum/libraries/nestedset/node"
	"github.com/rokde/baum/libraries/nestedset/setbuilder"
	"github.com/rokde/baum/libraries/nestedset/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("nstreectl: %v", err))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: nstreectl <validate|rebuild|move|show> [args...]")
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "validate":
		return runValidate(rest)
	case "rebuild":
		return runRebuild(rest)
	case "move":
		return runMove(rest)
	case "show":
		return runShow(rest)
	case "help", "-h", "--help":
		fmt.Println(usage())
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage())
	}
}

func usage() string {
	return "usage: nstreectl <validate|rebuild|move|show> [args...]\n" +
		"  validate <table>\n" +
		"  rebuild  <table>\n" +
		"  move     <id> <root|left|right|child> [target-id]\n" +
		"  show     <table> <id>"
}

func dsnParser(name string) *argparser.ArgParser {
	ap := argparser.New(name, -1)
	ap.Supports(&argparser.Option{Name: "dsn", Type: argparser.Value, ValDesc: "dsn", Desc: "database DSN, overrides " + config.EnvDSN})
	ap.Supports(&argparser.Option{Name: "dialect", Type: argparser.Value, ValDesc: "mysql|postgres", Desc: "SQL dialect, overrides " + config.EnvDialect})
	return ap
}

func openStore(res argparser.Result, table string) (*store.SQLStore[int64], func() error, error) {
	cfg := config.FromEnv(config.Default(table))
	cfg = cfg.Apply(config.Overrides{DSN: res.Get("dsn"), Dialect: res.Get("dialect")})
	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("no DSN given: pass --dsn or set %s", config.EnvDSN)
	}

	grammar, err := dialect.For(cfg.Dialect)
	if err != nil {
		return nil, nil, err
	}

	driver := string(cfg.Dialect)
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	st := store.NewSQLStore[int64](db, driver, cfg.Descriptor(), grammar, store.Int64Codec{}, nil, nil)
	return st, db.Close, nil
}

func runValidate(args []string) error {
	ap := dsnParser("validate")
	res, err := ap.Parse(args)
	if err != nil {
		return err
	}
	if len(res.Args) != 1 {
		return fmt.Errorf("usage: nstreectl validate <table>")
	}
	st, closeFn, err := openStore(res, res.Args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	ok, err := setbuilder.IsValidNestedSet[int64](context.Background(), st, nil)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println(color.RedString("invalid"))
		os.Exit(2)
	}
	fmt.Println(color.GreenString("valid"))
	return nil
}

func runRebuild(args []string) error {
	ap := dsnParser("rebuild")
	res, err := ap.Parse(args)
	if err != nil {
		return err
	}
	if len(res.Args) != 1 {
		return fmt.Errorf("usage: nstreectl rebuild <table>")
	}
	st, closeFn, err := openStore(res, res.Args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	if err := setbuilder.Rebuild[int64](context.Background(), st, nil); err != nil {
		return err
	}
	fmt.Println(color.GreenString("rebuilt"))
	return nil
}

func runMove(args []string) error {
	ap := dsnParser("move")
	ap.Supports(&argparser.Option{Name: "table", Type: argparser.RequiredValue, ValDesc: "table", Desc: "table to move within"})
	res, err := ap.Parse(args)
	if err != nil {
		return err
	}
	if len(res.Args) < 2 || len(res.Args) > 3 {
		return fmt.Errorf("usage: nstreectl move --table <table> <id> <root|left|right|child> [target-id]")
	}
	id, err := strconv.ParseInt(res.Args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", res.Args[0], err)
	}
	position := mover.Position(res.Args[1])

	st, closeFn, err := openStore(res, res.Get("table"))
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	n, err := st.Get(ctx, nil, nil, id, store.NoLock)
	if err != nil {
		return err
	}

	var target mover.Target[int64]
	if position != mover.Root {
		if len(res.Args) != 3 {
			return fmt.Errorf("position %q requires a target id", position)
		}
		targetID, err := strconv.ParseInt(res.Args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid target id %q: %w", res.Args[2], err)
		}
		target = mover.ByID[int64](targetID)
	}

	mv := mover.New[int64](st, st.Descriptor(), events.NewInMemoryBus(nil), nil, nil, nil, res.Get("table"), nil)
	if _, err := mv.Move(ctx, n, target, position); err != nil {
		return err
	}
	fmt.Println(color.GreenString("moved"))
	return nil
}

func runShow(args []string) error {
	ap := dsnParser("show")
	res, err := ap.Parse(args)
	if err != nil {
		return err
	}
	if len(res.Args) != 2 {
		return fmt.Errorf("usage: nstreectl show <table> <id>")
	}
	id, err := strconv.ParseInt(res.Args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", res.Args[1], err)
	}

	st, closeFn, err := openStore(res, res.Args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := st.Get(context.Background(), nil, nil, id, store.NoLock)
	if err != nil {
		return err
	}
	printNode(n)
	return nil
}

func printNode(n *node.Node[int64]) {
	parent := "<root>"
	if n.Parent != nil {
		parent = fmt.Sprint(*n.Parent)
	}
	fmt.Printf("id=%d parent=%s left=%d right=%d depth=%d descendants=%s\n",
		n.ID, parent, n.Left, n.Right, n.Depth, humanize.Comma(int64(n.SubtreeSize())))
}
