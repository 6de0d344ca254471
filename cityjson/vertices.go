package cityjson

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Vertex is a quantized coordinate triple. Real-world coordinates are
// recovered through the owning document's Transform.
type Vertex [3]int64

// Vertices is the vertex array of a document or feature. Every line of a
// CityJSONSeq stream carries one, so (de)serialization goes through easyjson
// instead of encoding/json reflection.
type Vertices []Vertex

func (vs Vertices) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	vs.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (vs Vertices) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	for i, v := range vs {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawByte('[')
		w.Int64(v[0])
		w.RawByte(',')
		w.Int64(v[1])
		w.RawByte(',')
		w.Int64(v[2])
		w.RawByte(']')
	}
	w.RawByte(']')
}

func (vs *Vertices) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	vs.UnmarshalEasyJSON(&l)
	return l.Error()
}

func (vs *Vertices) UnmarshalEasyJSON(l *jlexer.Lexer) {
	if l.IsNull() {
		l.Skip()
		*vs = nil
		return
	}
	out := (*vs)[:0]
	l.Delim('[')
	for !l.IsDelim(']') {
		var v Vertex
		l.Delim('[')
		for i := 0; !l.IsDelim(']'); i++ {
			x := l.Int64()
			if i < 3 {
				v[i] = x
			}
			l.WantComma()
		}
		l.Delim(']')
		out = append(out, v)
		l.WantComma()
	}
	l.Delim(']')
	*vs = out
}

func (vs Vertices) Clone() Vertices {
	out := make(Vertices, len(vs))
	copy(out, vs)
	return out
}
