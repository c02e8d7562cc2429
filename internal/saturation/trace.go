package saturation

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/pkg/compression"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/parallel"
)

// TraceDump wraps s so every iteration's post-Apply graph snapshot is
// zstd-compressed and appended to out as a length-prefixed frame — an
// optional diagnostic for long saturation runs where per-iteration JSON
// snapshots would otherwise be too large to keep around uncompressed.
// Like Instrument, this never alters s's Strategy[N,D] contract.
func TraceDump[N eclass.NodeType, D any](s Strategy[N, D], out io.Writer) (Strategy[N, D], error) {
	comp, err := compression.NewZstdCompressor(compression.LevelFastest)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "creating trace dump compressor", err)
	}

	return Func[N, D]{
		InitialFn: s.InitialData,
		ApplyFn: func(ctx context.Context, g *egraph.EGraph[N], data D, pm parallel.Map) (*egraph.EGraph[N], D, bool, error) {
			next, nd, changed, err := s.Apply(ctx, g, data, pm)
			if err != nil {
				return next, nd, changed, err
			}
			dumped := next
			if dumped == nil {
				dumped = g
			}
			if dumpErr := dumpFrame(comp, dumped, out); dumpErr != nil {
				return next, nd, changed, apperrors.Wrap(apperrors.CodeUnknown, "writing saturation trace frame", dumpErr)
			}
			return next, nd, changed, nil
		},
	}, nil
}

func dumpFrame[N eclass.NodeType](comp compression.Compressor, g *egraph.EGraph[N], out io.Writer) error {
	var buf bytes.Buffer
	if err := egraph.NewJSONWriter().Write(g.Snapshot(), &buf); err != nil {
		return err
	}

	packed, err := comp.Compress(buf.Bytes())
	if err != nil {
		return err
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(packed)))
	if _, err := out.Write(length[:]); err != nil {
		return err
	}
	_, err = out.Write(packed)
	return err
}
