package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notespace/client/internal/channel"
	"notespace/client/internal/content"
	"notespace/client/internal/cursor"
	"notespace/client/internal/editor"
	"notespace/client/internal/render"
	"notespace/client/internal/workspace"
)

var openCmd = &cobra.Command{
	Use:   "open <document-id>",
	Short: "Open a document for editing",
	Long: `Opens a document, joins its sync channel and reads edit commands from
stdin until EOF, "quit" or an interrupt. Unsaved content is handed to a
final save on exit.

Commands:
  show                     print the document as Markdown
  append <text>            add a paragraph at the end
  set <index> <text>       replace the text of a block
  title <text>             rename the document
  cursor <index> <offset>  publish the local caret
  hide                     hide the local caret
  cursors                  list remote cursors
  status                   print the session state
  quit                     close the document`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().String("role", "", "Role granted when the document is shared with you (viewer or editor)")
	openCmd.Flags().Bool("measure", false, "Lay the document out in headless Chrome to place remote cursors")
	openCmd.Flags().Int64("width", 800, "Viewport width used with --measure")
}

func runOpen(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	env.serveMetrics(ctx)

	id := content.ID(args[0])
	user, err := env.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("load user (are you signed in?): %w", err)
	}
	docCache, err := env.openCache()
	if err != nil {
		return err
	}

	var layout *measuredLayout
	if measure, _ := cmd.Flags().GetBool("measure"); measure {
		width, _ := cmd.Flags().GetInt64("width")
		layout = &measuredLayout{width: width, logger: env.logger}
	}

	syncChannel := channel.New(channel.Config{
		BaseURL:        env.cfg.SyncURL,
		ReconnectDelay: env.cfg.ReconnectDelay,
		CursorRate:     env.cfg.CursorRate,
		Logger:         env.logger,
		Metrics:        env.metrics,
	}, channel.Identity{UserID: user.ID, Username: user.DisplayName()})
	syncChannel.OnStateChange(func(s channel.State) {
		env.logger.Debug("sync channel", "state", s)
	})

	role, _ := cmd.Flags().GetString("role")
	blocks := editor.NewMemoryEditor()
	cfg := editor.Config{
		DocumentID:          id,
		UserID:              user.ID,
		SharedRole:          role,
		Store:               env.client,
		Cache:               docCache,
		Blocks:              blocks,
		Channel:             syncChannel,
		Tokens:              env.client,
		Parents:             workspace.New(env.client, env.logger),
		AutosaveDelay:       env.cfg.AutosaveDelay,
		RetryDelay:          env.cfg.RetryDelay,
		OverlaySyncInterval: env.cfg.OverlaySyncInterval,
		Logger:              env.logger,
		Metrics:             env.metrics,
	}
	if layout != nil {
		cfg.Layout = layout
	}
	ed := editor.New(cfg)
	if err := ed.Mount(ctx); err != nil {
		return err
	}
	defer func() {
		ed.Unmount()
		ed.Wait()
	}()

	sess := &openSession{
		editor:    ed,
		blocks:    blocks,
		layout:    layout,
		out:       cmd.OutOrStdout(),
		measuring: make(chan struct{}, 1),
	}
	sess.relayout(ctx)
	blocks.OnChange(func() { sess.relayout(ctx) })

	status := ed.Status()
	fmt.Fprintf(sess.out, "Opened %q as %s (%s content, %d blocks)\n", status.Title, status.Role, status.Source, len(ed.Content().Blocks))
	return sess.run(ctx, cmd.InOrStdin())
}

type openSession struct {
	editor *editor.Editor
	blocks *editor.MemoryEditor
	layout *measuredLayout
	out    io.Writer

	measuring chan struct{}
}

// relayout re-measures the document in the background. Only one measurement
// runs at a time; changes during a run are picked up by the next one.
func (s *openSession) relayout(ctx context.Context) {
	if s.layout == nil {
		return
	}
	select {
	case s.measuring <- struct{}{}:
	default:
		return
	}
	go func() {
		defer func() { <-s.measuring }()
		measureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err := s.layout.Measure(measureCtx, s.editor.Document(), s.editor.Content())
		if errors.Is(err, render.ErrBrowserMissing) {
			s.layout.logger.Warn("no browser for layout, remote cursors are placed by raw coordinates")
			return
		}
		if err != nil {
			s.layout.logger.Warn("measure layout", "error", err)
			return
		}
		s.editor.Resized()
	}()
}

func (s *openSession) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := s.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

func (s *openSession) exec(ctx context.Context, line string) (bool, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "show":
		md, err := render.DefaultRegistry().Markdown(s.editor.Content())
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "# %s\n\n%s", s.editor.Title(), md)
	case "append":
		return false, s.blocks.Append(content.Paragraph(rest))
	case "set":
		rawIndex, text, _ := strings.Cut(rest, " ")
		index, err := s.blockIndex(rawIndex)
		if err != nil {
			return false, err
		}
		return false, s.blocks.SetText(index, text)
	case "title":
		return false, s.editor.SetTitle(ctx, rest)
	case "cursor":
		rawIndex, rawOffset, _ := strings.Cut(rest, " ")
		index, err := strconv.Atoi(rawIndex)
		if err != nil {
			return false, fmt.Errorf("block index: %w", err)
		}
		offset := 0.0
		if rawOffset != "" {
			if offset, err = strconv.ParseFloat(rawOffset, 64); err != nil {
				return false, fmt.Errorf("offset: %w", err)
			}
		}
		return false, s.editor.MoveCursor(index, offset)
	case "hide":
		return false, s.editor.HideCursor()
	case "cursors":
		printCursors(s.out, s.editor.Cursors())
	case "status":
		st := s.editor.Status()
		fmt.Fprintf(s.out, "state=%s role=%s source=%s channel=%s pending=%t cursors=%d\n",
			st.State, st.Role, st.Source, st.Channel, st.Pending, st.Cursors)
	default:
		return false, fmt.Errorf("unknown command %q", verb)
	}
	return false, nil
}

func (s *openSession) blockIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("block index: %w", err)
	}
	if n := len(s.editor.Content().Blocks); index < 0 || index >= n {
		return 0, fmt.Errorf("block index %d out of range (%d blocks)", index, n)
	}
	return index, nil
}

func printCursors(w io.Writer, cursors []cursor.Remote) {
	if len(cursors) == 0 {
		fmt.Fprintln(w, "no remote cursors")
		return
	}
	for _, c := range cursors {
		where := "hidden"
		switch {
		case c.Placed:
			where = fmt.Sprintf("(%.0f, %.0f)", c.Position.X, c.Position.Y)
		case c.Logical != nil:
			where = fmt.Sprintf("block %d offset %.0f", c.Logical.Block, c.Logical.Offset)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Username, c.Color, where, c.UpdatedAt.Format(time.TimeOnly))
	}
}
