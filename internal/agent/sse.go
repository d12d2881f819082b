package agent

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// readSSE calls onData with the joined data lines of every event.
func readSSE(r io.Reader, onData func(data string)) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			return
		}
		onData(strings.Join(dataLines, "\n"))
		dataLines = nil
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, ":"):
			// comment
		case strings.HasPrefix(trimmed, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
		}
		if errors.Is(err, io.EOF) {
			flush()
			return nil
		}
	}
}

// streamText accumulates message text across stream events. An event whose
// text extends what was seen replaces it; anything else is a delta.
type streamText struct {
	text string
}

func (s *streamText) add(t string) {
	switch {
	case t == "":
	case s.text != "" && strings.HasPrefix(t, s.text):
		s.text = t
	case s.text != "" && strings.HasPrefix(s.text, t):
	default:
		s.text += t
	}
}

func (s *streamText) addMessages(arr gjson.Result) {
	arr.ForEach(func(_, m gjson.Result) bool {
		if !m.Get("content").Exists() || isUserRole(messageRole(m)) {
			return true
		}
		s.add(strings.Join(partTexts(m.Get("content")), ""))
		return true
	})
}

// addEvent understands the message-list, data/output envelope and delta
// event shapes.
func (s *streamText) addEvent(data string) {
	if data == "" || data == "[DONE]" || !gjson.Valid(data) {
		return
	}
	doc := gjson.Parse(data)
	if doc.IsArray() {
		s.addMessages(doc)
		return
	}
	if !doc.IsObject() {
		return
	}
	body := doc
	if d := doc.Get("data"); d.IsObject() {
		body = d
	}
	msgs := body.Get("messages")
	if !msgs.IsArray() {
		msgs = body.Get("output.messages")
	}
	if msgs.IsArray() {
		s.addMessages(msgs)
		return
	}
	if c := body.Get("delta.content"); c.Exists() {
		s.add(strings.Join(partTexts(c), ""))
	}
}
