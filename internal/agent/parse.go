package agent

import (
	"strings"

	"github.com/tidwall/gjson"
)

// partTexts reads a message content that is either a string or a list of
// parts carrying text, output_text or content.
func partTexts(content gjson.Result) []string {
	if !content.Exists() {
		return nil
	}
	if content.IsArray() {
		var out []string
		content.ForEach(func(_, part gjson.Result) bool {
			for _, key := range []string{"text", "output_text", "content"} {
				if v := part.Get(key); v.Exists() && v.String() != "" {
					out = append(out, v.String())
					return true
				}
			}
			if part.Type == gjson.String && part.String() != "" {
				out = append(out, part.String())
			}
			return true
		})
		return out
	}
	if s := content.String(); s != "" {
		return []string{s}
	}
	return nil
}

func messageRole(m gjson.Result) string {
	if r := m.Get("role").String(); r != "" {
		return strings.ToLower(r)
	}
	return strings.ToLower(m.Get("type").String())
}

func isUserRole(role string) bool {
	return role == "user" || role == "human"
}

// parseMessages flattens a messages array, one Message per text part.
func parseMessages(arr gjson.Result) []Message {
	var out []Message
	arr.ForEach(func(_, m gjson.Result) bool {
		role := messageRole(m)
		for _, t := range partTexts(m.Get("content")) {
			out = append(out, Message{Role: role, Content: t})
		}
		return true
	})
	return out
}

// parsePlain reads the {reply, segments, messages, thread_id} envelope.
func parsePlain(body []byte) Result {
	doc := gjson.ParseBytes(body)
	res := Result{
		ThreadID: doc.Get("thread_id").String(),
		Reply:    doc.Get("reply").String(),
	}
	doc.Get("segments").ForEach(func(_, s gjson.Result) bool {
		if s.String() != "" {
			res.Segments = append(res.Segments, s.String())
		}
		return true
	})
	msgs := doc.Get("messages")
	if !msgs.IsArray() {
		msgs = doc.Get("output.messages")
	}
	if msgs.IsArray() {
		res.Messages = parseMessages(msgs)
	}
	return res
}

// parseRun reads a run result: non-user message texts become segments.
func parseRun(body []byte) Result {
	doc := gjson.ParseBytes(body)
	msgs := doc.Get("output.messages")
	if !msgs.IsArray() {
		msgs = doc.Get("messages")
	}
	var res Result
	for _, m := range parseMessages(msgs) {
		if isUserRole(m.Role) {
			continue
		}
		res.Segments = append(res.Segments, m.Content)
	}
	if len(res.Segments) == 0 {
		return parsePlain(body)
	}
	return res
}

// parseA2A reads a JSON-RPC message/send response.
func parseA2A(body []byte) (Result, bool) {
	doc := gjson.ParseBytes(body)
	if doc.Get("error").Exists() && doc.Get("error").Type != gjson.Null {
		return Result{}, false
	}
	res := Result{ThreadID: doc.Get("result.thread.threadId").String()}
	res.Segments = partTexts(doc.Get("result.message.parts"))
	return res, true
}
