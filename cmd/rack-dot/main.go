package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vsariola/rack/cmd"
	"github.com/vsariola/rack/report"
	"github.com/vsariola/rack/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	summary := flag.Bool("summary", false, "Print a plain text summary instead of a Graphviz graph.")
	templateDir := flag.String("t", "", "Directory with patch.dot and summary.txt templates overriding the built-in ones.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	var reporter *report.Reporter
	var err error
	if *templateDir != "" {
		reporter, err = report.NewFromTemplates(*templateDir)
	} else {
		reporter, err = report.New()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	retval := 0
	for _, filename := range flag.Args() {
		patch, err := cmd.ReadPatchFile(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			retval = 1
			continue
		}
		var out string
		if *summary {
			out, err = reporter.Summary(patch)
		} else {
			out, err = reporter.DOT(patch)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", filename, err)
			retval = 1
			continue
		}
		fmt.Print(out)
	}
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Rack command line utility for printing .yml/.json patch files as Graphviz graphs.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
