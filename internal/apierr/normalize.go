package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	MsgInvalidData   = "Dữ liệu không hợp lệ. Vui lòng kiểm tra lại."
	MsgUnknown       = "Đã xảy ra lỗi không xác định"
	MsgNetwork       = "Không thể kết nối đến server. Kiểm tra kết nối mạng"
	MsgConnRefused   = "Server từ chối kết nối. Kiểm tra server có chạy không"
	MsgTimeout       = "Kết nối quá thời gian chờ"
	MsgNetworkOther  = "Lỗi kết nối mạng"
	MsgBadBody       = "Dữ liệu phản hồi từ server không hợp lệ"
	unknownStatusTxt = "Unknown Error"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Dữ liệu không hợp lệ",
	http.StatusUnauthorized:        "Phiên đăng nhập đã hết hạn",
	http.StatusForbidden:           "Bạn không có quyền truy cập tài nguyên này",
	http.StatusNotFound:            "Không tìm thấy tài nguyên yêu cầu",
	http.StatusConflict:            "Dữ liệu đã tồn tại hoặc xung đột",
	http.StatusUnprocessableEntity: "Dữ liệu không đúng định dạng",
	http.StatusTooManyRequests:     "Quá nhiều yêu cầu. Vui lòng thử lại sau",
	http.StatusInternalServerError: "Lỗi máy chủ nội bộ",
	http.StatusBadGateway:          "Máy chủ không phản hồi",
	http.StatusServiceUnavailable:  "Dịch vụ tạm thời không khả dụng",
}

// StatusMessage is the fallback user-facing message for an HTTP status.
func StatusMessage(status int) string {
	if m, ok := statusMessages[status]; ok {
		return m
	}
	return fmt.Sprintf("Lỗi server (%d)", status)
}

// TransportMessage is the user-facing message for a call that never got
// a response.
func TransportMessage(code string) string {
	switch code {
	case CodeNetwork:
		return MsgNetwork
	case CodeConnRefused:
		return MsgConnRefused
	case CodeTimeout:
		return MsgTimeout
	default:
		return MsgNetworkOther
	}
}

// Failure is everything the client observed about a failed call.
type Failure struct {
	Config         RequestInfo
	RequestHeaders http.Header
	RequestBody    []byte
	Params         url.Values

	// Response is nil when the call never got an answer.
	Response *http.Response
	Body     []byte

	// TransportCode classifies a response-less failure.
	TransportCode string
	// Sent is false when the request could not even be built or sent.
	Sent bool
	Err  error

	MonitorID string
	Now       time.Time
}

// Normalize turns a failure into the single error shape callers see.
func Normalize(f Failure) *Error {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	d := &Details{
		StatusText: unknownStatusTxt,
		Code:       CodeUnknown,
		Config:     f.Config,
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
	}
	d.Config.Method = strings.ToUpper(d.Config.Method)
	if f.MonitorID != "" {
		d.Context = "Monitor ID: " + f.MonitorID
	}
	if f.Sent || f.RequestBody != nil || len(f.Params) > 0 {
		d.Request = &RequestDetails{
			Headers: flattenHeaders(f.RequestHeaders, true),
			Data:    decodeBody(f.RequestBody),
			Params:  flattenValues(f.Params),
		}
	}

	kind := KindTransport
	switch {
	case f.Response != nil:
		kind = KindHTTP
		status := f.Response.StatusCode
		d.Status = status
		d.Code = CodeBadResponse
		if txt := http.StatusText(status); txt != "" {
			d.StatusText = txt
		}
		d.Data = decodeBody(f.Body)
		d.Response = &ResponseInfo{
			Headers:    flattenHeaders(f.Response.Header, false),
			Data:       d.Data,
			Status:     status,
			StatusText: d.StatusText,
		}

		// a 2xx only lands here when its body could not be decoded
		if status >= 200 && status < 300 {
			d.Message = MsgBadBody
			break
		}

		msg, validation := ExtractMessage(f.Body)
		if validation != nil {
			d.ValidationErrors = validation
			kind = KindValidation
		}
		if msg == "" {
			msg = StatusMessage(status)
		}
		d.Message = msg

	case f.Sent:
		if f.TransportCode != "" {
			d.Code = f.TransportCode
		}
		d.Message = TransportMessage(f.TransportCode)

	default:
		if f.Err != nil && f.Err.Error() != "" {
			d.Message = f.Err.Error()
		} else {
			d.Message = MsgUnknown
		}
	}

	return &Error{Kind: kind, Message: d.Message, Details: d, cause: f.Err}
}

// ExtractMessage pulls a human message out of an error body. Priority:
// plain string body, error, message, detail, errors[] joined, then
// validationErrors (which also yields the list itself). An empty
// message means the caller should use the status default.
func ExtractMessage(body []byte) (string, []any) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", nil
	}
	if !gjson.Valid(trimmed) {
		return trimmed, nil
	}

	res := gjson.Parse(trimmed)
	if res.Type == gjson.String {
		return res.String(), nil
	}
	if !res.IsObject() {
		return "", nil
	}

	for _, key := range []string{"error", "message", "detail"} {
		if v := res.Get(key); truthy(v) {
			return resultText(v), nil
		}
	}

	if errs := res.Get("errors"); errs.IsArray() {
		parts := make([]string, 0, len(errs.Array()))
		for _, item := range errs.Array() {
			switch {
			case item.Type == gjson.String:
				parts = append(parts, item.String())
			case truthy(item.Get("message")):
				parts = append(parts, resultText(item.Get("message")))
			case truthy(item.Get("detail")):
				parts = append(parts, resultText(item.Get("detail")))
			default:
				parts = append(parts, item.Raw)
			}
		}
		return strings.Join(parts, ", "), nil
	}

	if v := res.Get("validationErrors"); truthy(v) {
		return MsgInvalidData, decodeValidationErrors(v)
	}
	return "", nil
}

func truthy(v gjson.Result) bool {
	if !v.Exists() {
		return false
	}
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return true
	}
}

func resultText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

// decodeValidationErrors keeps arrays as-is; objects become a list of
// {"field", "message"} pairs in key order.
func decodeValidationErrors(v gjson.Result) []any {
	if v.IsArray() {
		var out []any
		if err := json.Unmarshal([]byte(v.Raw), &out); err == nil {
			return out
		}
	}
	if v.IsObject() {
		var m map[string]any
		if err := json.Unmarshal([]byte(v.Raw), &m); err == nil {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := make([]any, 0, len(keys))
			for _, k := range keys {
				out = append(out, map[string]any{"field": k, "message": m[k]})
			}
			return out
		}
	}
	return []any{v.Value()}
}

func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func flattenHeaders(h http.Header, redact bool) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		v := strings.Join(vs, ", ")
		if redact && strings.EqualFold(k, "Authorization") && v != "" {
			v = "Bearer ***"
		}
		out[k] = v
	}
	return out
}

func flattenValues(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k, vs := range v {
		out[k] = strings.Join(vs, ",")
	}
	return out
}
