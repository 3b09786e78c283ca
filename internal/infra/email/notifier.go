package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   sendFunc
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, jobID, videoKey, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := failureMessage(n.from, userEmail, jobID, videoKey, errorMsg)

	if err := n.send(addr, nil, n.from, []string{userEmail}, msg); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("job_id", jobID),
	)
	return nil
}

func failureMessage(from, to, jobID, videoKey, errorMsg string) []byte {
	lines := []string{
		"From: " + from,
		"To: " + to,
		fmt.Sprintf("Subject: FIAP X - Frame Sampling Failed [Job %s]", jobID),
		"",
		"Hello,",
		"",
		"We could not sample frames from your video and will not retry this job.",
		"",
		"Job ID: " + jobID,
		"Video: " + videoKey,
		"Reason: " + errorMsg,
		"",
		"Check the sampling filter and rate, then submit the video again.",
		"",
		"-- FIAP X Sampling Service",
	}
	return []byte(strings.Join(lines, "\r\n"))
}
