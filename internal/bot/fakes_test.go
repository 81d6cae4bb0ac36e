package bot

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/telegram"
)

type sentMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type editedMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type fakeChat struct {
	mu      sync.Mutex
	nextID  int64
	sent    []sentMessage
	edits   []editedMessage
	editErr func(text string) error
}

func (c *fakeChat) SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.sent = append(c.sent, sentMessage{ChatID: chatID, MessageID: c.nextID, Text: text})
	return &telegram.Message{MessageID: c.nextID, Chat: &telegram.Chat{ID: chatID}, Text: text}, nil
}

func (c *fakeChat) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		if err := c.editErr(text); err != nil {
			return err
		}
	}
	c.edits = append(c.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (c *fakeChat) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Text
	}
	return out
}

func (c *fakeChat) lastEditText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.edits) == 0 {
		return ""
	}
	return c.edits[len(c.edits)-1].Text
}

type fakeStream struct {
	chunks []string
	err    error
	pos    int
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func streamOf(chunks ...string) StreamFunc {
	return func(ctx context.Context, req gemini.GenerateRequest) (TextStream, error) {
		return &fakeStream{chunks: chunks}, nil
	}
}

type fakeFileAPI struct {
	mu            sync.Mutex
	getFileCalls  int
	downloadCalls int
	filePath      string
	data          []byte
	getFileErr    error
	downloadErr   error
}

func (f *fakeFileAPI) GetFile(ctx context.Context, fileID string) (*telegram.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getFileCalls++
	if f.getFileErr != nil {
		return nil, f.getFileErr
	}
	path := f.filePath
	if path == "" {
		path = "files/" + fileID
	}
	return &telegram.File{FileID: fileID, FilePath: path}, nil
}

func (f *fakeFileAPI) DownloadFile(ctx context.Context, filePath string, maxBytes int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.data, nil
}

func (f *fakeFileAPI) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getFileCalls + f.downloadCalls
}

func (f *fakeFileAPI) callCounts() (getFile, download int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getFileCalls, f.downloadCalls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
