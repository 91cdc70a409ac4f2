package codec_test

import (
	"context"
	"mini-thrift/codec"
	"mini-thrift/internal/fixture"
	"mini-thrift/protocol"
	"testing"
)

func benchmarkMany() fixture.Many {
	return fixture.Many{
		One:   1,
		Two:   "two",
		Three: []fixture.Simple{{Key: "a"}, {Key: "b"}, {Key: "c"}},
		Five:  map[fixture.Operation]struct{}{fixture.OperationAdd: {}, fixture.OperationDiv: {}},
		Six:   &fixture.Simple{Key: "six"},
	}
}

func benchmarkCodec(b *testing.B, f protocol.Format) {
	c := codec.New(f.Factory(nil))
	ctx := context.Background()
	in := benchmarkMany()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := c.Marshal(ctx, in)
		if err != nil {
			b.Fatal(err)
		}
		var out fixture.Many
		if err := c.Unmarshal(ctx, data, &out); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCodecBinary(b *testing.B)  { benchmarkCodec(b, protocol.FormatBinary) }
func BenchmarkCodecCompact(b *testing.B) { benchmarkCodec(b, protocol.FormatCompact) }
func BenchmarkCodecJSON(b *testing.B)    { benchmarkCodec(b, protocol.FormatJSON) }
