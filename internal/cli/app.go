package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"todoapp/internal/client"
	"todoapp/internal/models"
	"todoapp/internal/orchestrator"
	"todoapp/internal/session"
)

var errNotLoggedIn = errors.New("not logged in (run: todoapp login)")

// clientEnv is what the client commands share: the saved session and an
// API client that authenticates with it.
type clientEnv struct {
	files   *session.FileStore
	session *session.Manager
	api     *client.Client
}

func newClientEnv() (*clientEnv, error) {
	files := session.NewFileStore(cfg.Session.Path)
	state, err := files.Load()
	if err != nil {
		return nil, err
	}
	mgr := session.NewManager(state)
	api := client.New(cfg.API.URL, mgr, client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}))
	return &clientEnv{files: files, session: mgr, api: api}, nil
}

func (e *clientEnv) requireSession() error {
	if !e.session.Active() {
		return errNotLoggedIn
	}
	return nil
}

// begin starts and saves a session from a login or registration.
func (e *clientEnv) begin(resp *models.AuthResponse) error {
	return e.files.Save(e.session.Begin(resp))
}

func (e *clientEnv) end() error {
	e.session.End()
	return e.files.Clear()
}

func (e *clientEnv) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(e.api, orchestrator.WithLogger(slog.Default()))
}

// settle waits for m, then for the statistics refresh it triggers.
func settle(ctx context.Context, o *orchestrator.Orchestrator, m *orchestrator.Mutation) error {
	if err := m.Wait(ctx); err != nil {
		return describe(err)
	}
	o.Wait()
	return nil
}

// describe turns a failed call into a message for the terminal.
func describe(err error) error {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return errors.New(ve.Message)
	case errors.Is(err, models.ErrUnauthorized):
		return fmt.Errorf("session rejected, log in again: %w", err)
	case errors.Is(err, models.ErrNotFound):
		return errors.New("task not found")
	case errors.Is(err, models.ErrConflict):
		return errors.New("that email is already registered")
	}
	return err
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// prompt reads one trimmed line from in after printing label.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
