package main

import "testing"

func TestParseFlags(t *testing.T) {
	opts := ParseFlags([]string{"-mode", "call", "-name", "k", "-config", "demo.yaml"})
	if opts.Mode != "call" || opts.Name != "k" || opts.ConfigPath != "demo.yaml" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	opts = ParseFlags(nil)
	if opts.Mode != "serve" || opts.Name != "hello" || opts.ConfigPath != "" {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}
