package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxBodyBytes = 64 << 10

// params reads named string fields from a JSON body, a form body or the
// query string, in that order of precedence.
type params map[string]string

func readParams(r *http.Request, names ...string) (params, error) {
	out := make(params, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" && r.Body != nil {
		var body map[string]any
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(&body); err != nil && err != io.EOF {
			return nil, err
		}
		for _, name := range names {
			if v, ok := body[name].(string); ok {
				out[name] = v
			}
		}
	} else if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		if _, ok := out[name]; ok {
			continue
		}
		if v := r.FormValue(name); v != "" {
			out[name] = v
		}
	}
	return out, nil
}

func (p params) get(name string) string {
	return strings.TrimSpace(p[name])
}

// raw returns the value untrimmed. Passwords keep surrounding spaces.
func (p params) raw(name string) string {
	return p[name]
}
