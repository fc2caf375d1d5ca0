package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// UserMessage is a title/body pair ready for an alert.
type UserMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func IsNetworkError(err error) bool {
	d := GetDetails(err)
	if d == nil {
		return false
	}
	switch d.Code {
	case CodeNetwork, CodeConnRefused, CodeTimeout:
		return true
	}
	return false
}

func IsAuthError(err error) bool {
	d := GetDetails(err)
	return d != nil && d.Status == 401
}

func IsValidationError(err error) bool {
	d := GetDetails(err)
	return d != nil && d.Status == 422 && len(d.ValidationErrors) > 0
}

func IsServerError(err error) bool {
	d := GetDetails(err)
	return d != nil && d.Status >= 500
}

// FormatErrorMessage never returns an empty string, nil included. A
// domain re-label takes precedence over the normalized message.
func FormatErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	if d := GetDetails(err); d != nil && d.Message != "" {
		return d.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return MsgUnknown
}

// ResponseData returns the raw server payload of a failed call.
func ResponseData(err error) any {
	d := GetDetails(err)
	if d == nil {
		return nil
	}
	if d.Response != nil && d.Response.Data != nil {
		return d.Response.Data
	}
	return d.Data
}

func ValidationErrors(err error) []any {
	if d := GetDetails(err); d != nil {
		return d.ValidationErrors
	}
	return nil
}

// FormatDetailedErrorMessage appends validation items and the server's
// "details" field, when present, to the basic message.
func FormatDetailedErrorMessage(err error) string {
	msg := FormatErrorMessage(err)

	if items := ValidationErrors(err); len(items) > 0 {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, validationItemText(item))
		}
		msg += "\nChi tiết: " + strings.Join(parts, ", ")
	}

	if data, ok := ResponseData(err).(map[string]any); ok {
		if extra, ok := data["details"]; ok && extra != nil && extra != "" {
			msg += fmt.Sprintf("\nThông tin thêm: %v", extra)
		}
	}
	return msg
}

// CreateUserErrorMessage maps a failure to alert copy. It is total: every
// input, nil included, yields a non-empty pair.
func CreateUserErrorMessage(err error) UserMessage {
	d := GetDetails(err)
	if d == nil {
		return UserMessage{Title: "Lỗi", Message: FormatErrorMessage(err)}
	}

	switch d.Status {
	case 0:
		return UserMessage{
			Title:   "Lỗi kết nối",
			Message: "Không thể kết nối đến server.\n\nKiểm tra:\n• Server đã chạy?\n• Kết nối internet?\n• URL: " + d.Config.BaseURL,
		}
	case 400:
		return UserMessage{
			Title:   "Dữ liệu không hợp lệ",
			Message: d.Message + "\n\nVui lòng kiểm tra lại thông tin đã nhập",
		}
	case 401:
		return UserMessage{
			Title:   "Yêu cầu đăng nhập",
			Message: "Phiên đăng nhập đã hết hạn.\n\nVui lòng đăng nhập lại",
		}
	case 403:
		return UserMessage{
			Title:   "Không có quyền",
			Message: "Bạn không có quyền truy cập tài nguyên này.\n\nLiên hệ admin nếu cần thiết",
		}
	case 404:
		return UserMessage{
			Title:   "Không tìm thấy",
			Message: "Tài nguyên yêu cầu không tồn tại.\n\nKiểm tra lại đường dẫn",
		}
	case 422:
		msg := d.Message
		if len(d.ValidationErrors) > 0 {
			lines := make([]string, 0, len(d.ValidationErrors))
			for _, item := range d.ValidationErrors {
				lines = append(lines, "• "+validationItemText(item))
			}
			msg += "\n\nChi tiết:\n" + strings.Join(lines, "\n")
		}
		return UserMessage{Title: "Dữ liệu không hợp lệ", Message: msg}
	case 429:
		return UserMessage{
			Title:   "Quá nhiều yêu cầu",
			Message: "Bạn đã gửi quá nhiều yêu cầu.\n\nVui lòng chờ một chút rồi thử lại",
		}
	case 500:
		return UserMessage{
			Title:   "Lỗi máy chủ",
			Message: "Server đang gặp sự cố.\n\nVui lòng thử lại sau hoặc liên hệ hỗ trợ",
		}
	case 502:
		return UserMessage{
			Title:   "Server không phản hồi",
			Message: "Máy chủ không phản hồi.\n\nVui lòng thử lại sau",
		}
	case 503:
		return UserMessage{
			Title:   "Dịch vụ bảo trì",
			Message: "Hệ thống đang bảo trì.\n\nVui lòng thử lại sau",
		}
	default:
		return UserMessage{
			Title:   fmt.Sprintf("Lỗi %d", d.Status),
			Message: d.Message + "\n\nVui lòng thử lại hoặc liên hệ hỗ trợ",
		}
	}
}

// LogDetails writes the normalized fields of err at debug level.
func LogDetails(log zerolog.Logger, err error, context string) {
	d := GetDetails(err)
	if d == nil {
		log.Debug().Err(err).Str("context", context).Msg("api error")
		return
	}
	ev := log.Debug().
		Str("context", context).
		Int("status", d.Status).
		Str("code", d.Code).
		Str("url", d.Config.URL).
		Str("method", d.Config.Method).
		Interface("data", d.Data)
	if len(d.ValidationErrors) > 0 {
		ev = ev.Interface("validation_errors", d.ValidationErrors)
	}
	ev.Msg(d.Message)
}

func validationItemText(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		msg := firstString(v, "message", "msg", "detail")
		if field := firstString(v, "field", "path", "param"); field != "" {
			if msg == "" {
				msg = fmt.Sprintf("%v", v)
			}
			return field + ": " + msg
		}
		if msg != "" {
			return msg
		}
	}
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("%v", item)
	}
	return string(b)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
