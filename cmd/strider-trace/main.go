package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Versifine/strider/internal/sonify"
	"github.com/Versifine/strider/internal/trace"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	code := 0
	switch cmd {
	case "summary":
		err = summary(os.Stdout, args)
	case "verify":
		code, err = verify(os.Stdout, args)
	case "sonify":
		err = sonifyCmd(os.Stdout, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: strider-trace summary|verify|sonify [flags] <trace.jsonl.zst>")
}

func summary(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("summary: missing trace path")
	}
	s, err := trace.Summarize(fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(out, "run %s  mode=%s  physics=%gHz frame=%gHz\n",
		s.Header.RunID, s.Header.Mode, s.Header.PhysicsHz, s.Header.FrameHz)
	fmt.Fprintf(out, "frames=%d duration=%.2fs jumps=%d airborne=%d disabled_frames=%d\n",
		s.Frames, s.Duration, s.Jumps, s.Airborne, s.Disabled)
	names := make([]string, 0, len(s.Steps))
	for name := range s.Steps {
		names = append(names, name)
	}
	for name := range s.Landings {
		if _, ok := s.Steps[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-4s steps=%d landings=%d\n", name, s.Steps[name], s.Landings[name])
	}
	return nil
}

func verify(out io.Writer, args []string) (int, error) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("verify: missing trace path")
	}
	violations, err := trace.Verify(fs.Arg(0))
	if err != nil {
		return 0, err
	}
	for _, v := range violations {
		fmt.Fprintln(out, v)
	}
	if len(violations) > 0 {
		fmt.Fprintf(out, "%d violations\n", len(violations))
		return 3, nil
	}
	fmt.Fprintln(out, "ok")
	return 0, nil
}

func sonifyCmd(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("sonify", flag.ContinueOnError)
	wav := fs.String("out", "footfalls.wav", "output WAV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("sonify: missing trace path")
	}
	n, err := sonify.Render(fs.Arg(0), *wav)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d footfalls to %s\n", n, *wav)
	return nil
}
