package content

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/net/html"
	"golang.org/x/xerrors"
)

// equalHTML parses a and b and records the sequence of structural events
// (start tags, end tags, data, entity/char refs, declarations, processing
// instructions), excluding comments, then compares the two sequences. Doc
// generators (Sphinx, gtk-doc, godoc) routinely embed a
// generation timestamp only inside an HTML comment, so dropping comments is
// what makes two builds minutes apart compare equal.
func (c *Comparator) equalHTML(a, b string) (bool, error) {
	ea, err := htmlEvents(a)
	if err != nil {
		return false, err
	}
	eb, err := htmlEvents(b)
	if err != nil {
		return false, err
	}
	if len(ea) != len(eb) {
		c.warn(a, "HTML event count differs between %s (%d) and %s (%d)", a, len(ea), b, len(eb))
		return false, nil
	}
	for i := range ea {
		if ea[i] != eb[i] {
			c.warn(a, "HTML event %d differs between %s and %s", i, a, b)
			return false, nil
		}
	}
	return true, nil
}

func htmlEvents(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, xerrors.Errorf("open %s: %w", fn, err)
	}
	defer f.Close()

	z := html.NewTokenizer(f)
	var events []string
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != nil && err != io.EOF {
				return nil, xerrors.Errorf("parsing %s: %w", fn, err)
			}
			break
		}
		// The tokenizer reports processing instructions ("<?...>") as
		// comments too; those stay in the event sequence.
		if tt == html.CommentToken && !bytes.HasPrefix(z.Raw(), []byte("<?")) {
			continue // comments are excluded from the event sequence
		}
		tok := z.Token()
		events = append(events, tok.Type.String()+"|"+tok.Data+"|"+attrString(tok.Attr))
	}
	return events, nil
}

func attrString(attrs []html.Attribute) string {
	s := ""
	for _, a := range attrs {
		s += a.Namespace + ":" + a.Key + "=" + a.Val + ";"
	}
	return s
}
