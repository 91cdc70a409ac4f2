package protocol

import (
	"context"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":        FormatBinary,
		"binary":  FormatBinary,
		"Compact": FormatCompact,
		" json ":  FormatJSON,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %v, want %v", in, got, want)
		}
		if got.String() == "unknown" || !got.Valid() {
			t.Errorf("format %v should be valid", got)
		}
	}

	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if Format(9).Valid() {
		t.Fatal("format 9 should be invalid")
	}
}

// Every format must carry a message header through a memory buffer.
func TestFormatsRoundTripMessageHeader(t *testing.T) {
	ctx := context.Background()
	for _, f := range []Format{FormatBinary, FormatCompact, FormatJSON} {
		buf := thrift.NewTMemoryBuffer()
		p := f.New(buf, Configuration(0))
		if err := p.WriteMessageBegin(ctx, "get_struct", thrift.CALL, 7); err != nil {
			t.Fatalf("%v: WriteMessageBegin failed: %v", f, err)
		}
		if err := p.WriteMessageEnd(ctx); err != nil {
			t.Fatalf("%v: WriteMessageEnd failed: %v", f, err)
		}
		if err := p.Flush(ctx); err != nil {
			t.Fatalf("%v: Flush failed: %v", f, err)
		}

		r := f.New(buf, Configuration(0))
		name, kind, seq, err := r.ReadMessageBegin(ctx)
		if err != nil {
			t.Fatalf("%v: ReadMessageBegin failed: %v", f, err)
		}
		if name != "get_struct" || kind != thrift.CALL || seq != 7 {
			t.Errorf("%v: got (%q, %v, %d)", f, name, kind, seq)
		}
	}
}

func TestConfigurationDefaults(t *testing.T) {
	conf := Configuration(0)
	if conf.MaxMessageSize != DefaultMaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want %d", conf.MaxMessageSize, DefaultMaxMessageSize)
	}
	if conf.TBinaryStrictWrite == nil || !*conf.TBinaryStrictWrite {
		t.Error("binary writes should be strict")
	}
	if Configuration(1024).MaxMessageSize != 1024 {
		t.Error("explicit limit should be kept")
	}
}
