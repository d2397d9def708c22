// Command aardwolf-trace dumps a dynamic trace file or a static `.aard`
// artifact to the terminal, colorized the way the teacher's own race
// collector prints diagnostics (raceCollection.go's aurora.Magenta /
// aurora.BgBrightGreen usage). It is the Go equivalent of the original
// project's Python tools/view.py and runtime/viewer.py.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/logrusorgru/aurora"

	"github.com/aardwolf-sfl/aardwolf/internal/static"
	"github.com/aardwolf-sfl/aardwolf/internal/trace"
)

func main() {
	static_ := flag.Bool("static", false, "dump a static .aard artifact instead of a dynamic trace")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: aardwolf-trace [-static] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	var err error
	if *static_ {
		err = dumpStatic(path)
	} else {
		err = dumpDynamic(path)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, aurora.Red(err.Error()))
		os.Exit(1)
	}
}

func dumpDynamic(path string) error {
	events, err := trace.Read(path)
	if err != nil {
		return err
	}
	for i, ev := range events {
		switch ev.Token {
		case trace.TokenStatement:
			fmt.Printf("%d: %s file=%v stmt=%v\n", i,
				aurora.BgBrightGreen("STATEMENT"), ev.FileID, ev.StmtID)
		case trace.TokenExternal:
			fmt.Printf("%d: %s %s\n", i, aurora.Magenta("EXTERNAL"), ev.Name)
		case trace.TokenDataNamed:
			fmt.Printf("%d: %s %s\n", i, aurora.Cyan("DATA(named)"), ev.Name)
		case trace.TokenDataNull:
			fmt.Printf("%d: %s\n", i, aurora.Cyan("DATA(null)"))
		case trace.TokenDataUnsupported:
			fmt.Printf("%d: %s\n", i, aurora.Yellow("DATA(unsupported)"))
		case trace.TokenDataBool:
			fmt.Printf("%d: %s %v\n", i, aurora.Cyan("DATA(bool)"), ev.BoolVal)
		default:
			fmt.Printf("%d: %s token=0x%X int=%v\n", i, aurora.Cyan("DATA"), ev.Token, ev.IntVal)
		}
	}
	return nil
}

func dumpStatic(path string) error {
	art, err := static.Read(path)
	if err != nil {
		return err
	}
	for _, fn := range art.Functions {
		fmt.Println(aurora.BgBrightGreen(fn.Name))
		for _, stmt := range fn.Statements {
			fmt.Printf("  %s stmt=%v file=%v succ=%v flags=%+v loc=%d:%d-%d:%d\n",
				aurora.Magenta("STATEMENT"), stmt.ID.Stmt, stmt.ID.File, stmt.Successors,
				stmt.Flags, stmt.BeginLine, stmt.BeginCol, stmt.EndLine, stmt.EndCol)
		}
	}
	fmt.Println(aurora.Cyan("files:"), art.Files)
	return nil
}
