package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
)

// SendLog appends dispatch outcomes to the dedup ledger
type SendLog interface {
	Append(ctx context.Context, rec notification.SendRecord) error
}

type sendRecordAppender interface {
	AppendSendRecord(ctx context.Context, rec notification.SendRecord) error
}

// MirroredSendLog writes to the local cache and mirrors to the system of record.
// The local write is authoritative; remote failures are logged and dropped.
type MirroredSendLog struct {
	local  sendRecordAppender
	remote sendRecordAppender
	logger *zap.Logger
}

// NewMirroredSendLog creates a MirroredSendLog. remote may be nil.
func NewMirroredSendLog(local, remote sendRecordAppender, logger *zap.Logger) *MirroredSendLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirroredSendLog{local: local, remote: remote, logger: logger.Named("send_log")}
}

// Append writes rec locally, then to the remote mirror
func (l *MirroredSendLog) Append(ctx context.Context, rec notification.SendRecord) error {
	if err := l.local.AppendSendRecord(ctx, rec); err != nil {
		return err
	}
	if l.remote == nil {
		return nil
	}
	if err := l.remote.AppendSendRecord(ctx, rec); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		l.logger.Warn("Failed to mirror send record",
			zap.String("record_id", rec.ID),
			zap.String("company_id", rec.CompanyID),
			zap.String("type", rec.Type.String()),
			zap.Error(err),
		)
	}
	return nil
}
