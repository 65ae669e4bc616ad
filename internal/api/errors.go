package api

import "github.com/tidwall/gjson"

// errorMessage extracts the user-facing message from an error body: "message", then a string
// "detail", then the first entry of a validation "detail" list. Empty when none is present,
// which BackendError renders as the generic fallback.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}

	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String && detail.Str != "":
		return detail.Str
	case detail.IsArray():
		if msg := detail.Get("0.msg"); msg.Type == gjson.String {
			return msg.Str
		}
	}
	return ""
}
