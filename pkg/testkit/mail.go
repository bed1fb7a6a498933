package testkit

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/shashiranjanraj/foodie/pkg/mail"
)

// MailRecorder replaces the SMTP sender and keeps every message instead.
// Its embedded testify mock sees each send as Send(recipients, subject), so
// tests can set expectations or make sends fail:
//
//	rec := testkit.ExpectMail()
//	defer rec.Restore()
//	rec.On("Send", []string{"a@b.c"}, mock.Anything).Return(errors.New("smtp down"))
type MailRecorder struct {
	mock.Mock

	mu      sync.Mutex
	sent    []*mail.Message
	restore func()
}

// RecordMail installs a recorder that accepts every message.
func RecordMail() *MailRecorder {
	r := ExpectMail()
	r.On("Send", mock.Anything, mock.Anything).Return(nil)
	return r
}

// ExpectMail installs a recorder with no expectations; every send must be
// set up with On("Send", ...).
func ExpectMail() *MailRecorder {
	r := &MailRecorder{}
	r.restore = mail.UseSender(r.send)
	return r
}

func (r *MailRecorder) send(m *mail.Message) error {
	r.mu.Lock()
	r.sent = append(r.sent, m)
	r.mu.Unlock()
	return r.Called(m.Recipients(), m.SubjectLine()).Error(0)
}

// Sent returns the recorded messages.
func (r *MailRecorder) Sent() []*mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*mail.Message(nil), r.sent...)
}

// Reset forgets the recorded messages, keeping expectations.
func (r *MailRecorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// Restore puts the previous sender back.
func (r *MailRecorder) Restore() { r.restore() }
