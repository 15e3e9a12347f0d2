package deliver

import "context"

// Channel delivers a finished digest. Attachment is optional; when set the
// message becomes its caption.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string, attachment []byte, attachmentName string) error
}
