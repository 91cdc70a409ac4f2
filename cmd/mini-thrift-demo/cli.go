package main

import "flag"

// Options holds CLI options for the demo.
type Options struct {
	ConfigPath string
	Mode       string // serve or call
	Name       string // Simple.key sent by call mode
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("mini-thrift-demo", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to config file (YAML, TOML or JSON)")
	fs.StringVar(&opts.Mode, "mode", "serve", "serve or call")
	fs.StringVar(&opts.Name, "name", "hello", "key echoed by call mode")
	_ = fs.Parse(args)
	return opts
}
