// Package workspace manages the document tree around the editor: the single
// root document, nested children and their references in the parent.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"notespace/client/internal/api"
	"notespace/client/internal/content"
	"notespace/client/internal/rbac"
)

var (
	ErrRootDocument = errors.New("the root document cannot be deleted")
	ErrInvalidRole  = errors.New("role must be viewer or editor")
)

const (
	RootTitle  = "Root"
	ChildTitle = "New document"
)

// Documents is the subset of the REST client the workspace needs.
type Documents interface {
	GetDocument(ctx context.Context, id content.ID) (content.Document, error)
	RootDocuments(ctx context.Context) ([]content.Document, error)
	CreateDocument(ctx context.Context, in api.NewDocument) (content.Document, error)
	SaveDocument(ctx context.Context, id content.ID, rec content.Record) (content.Document, error)
	DeleteDocument(ctx context.Context, id content.ID) error
	ToggleFavorite(ctx context.Context, id content.ID) (content.Document, error)
	Share(ctx context.Context, id content.ID, in api.ShareRequest) (api.AccessRight, error)
	ToggleTask(ctx context.Context, id content.ID, blockID string, completed bool) error
}

type Service struct {
	docs   Documents
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group
	// rootMu serialises the look-then-create section of Root across callers
	// that miss the singleflight window.
	rootMu sync.Mutex
	root   content.ID
}

func New(docs Documents, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger.With("component", "workspace"), now: time.Now}
}

// Root returns the caller's root document, creating it on first use. When
// several roots exist the lowest id wins. The lookup is shared by concurrent
// callers and outlives any one caller's cancellation.
func (s *Service) Root(ctx context.Context) (content.Document, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan("root", func() (any, error) {
		ctx := shared
		s.rootMu.Lock()
		defer s.rootMu.Unlock()

		if s.root != "" {
			doc, err := s.docs.GetDocument(ctx, s.root)
			if err == nil {
				return doc, nil
			}
			if !api.IsNotFound(err) {
				return nil, err
			}
			s.root = ""
		}

		roots, err := s.docs.RootDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("list root documents: %w", err)
		}
		if len(roots) > 0 {
			sort.Slice(roots, func(i, j int) bool { return roots[i].ID.Less(roots[j].ID) })
			if len(roots) > 1 {
				s.logger.Warn("several root documents, using the oldest", "count", len(roots), "root", roots[0].ID)
			}
			s.root = roots[0].ID
			return roots[0], nil
		}

		empty := content.Empty(s.now())
		doc, err := s.docs.CreateDocument(ctx, api.NewDocument{Title: RootTitle, Content: &empty, IsRoot: true})
		if err != nil {
			return nil, fmt.Errorf("create root document: %w", err)
		}
		s.logger.Info("created root document", "root", doc.ID)
		s.root = doc.ID
		return doc, nil
	})
	select {
	case <-ctx.Done():
		return content.Document{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return content.Document{}, res.Err
		}
		return res.Val.(content.Document), nil
	}
}

// CreateChild creates a document under parentID and puts a reference to it
// at index in the parent's content.
func (s *Service) CreateChild(ctx context.Context, parentID content.ID, index int, title string) (content.Document, error) {
	if title == "" {
		title = ChildTitle
	}
	parent, err := s.docs.GetDocument(ctx, parentID)
	if err != nil {
		return content.Document{}, fmt.Errorf("load parent %s: %w", parentID, err)
	}

	empty := content.Empty(s.now())
	pid := parent.ID
	child, err := s.docs.CreateDocument(ctx, api.NewDocument{Title: title, Content: &empty, Parent: &pid})
	if err != nil {
		return content.Document{}, fmt.Errorf("create child of %s: %w", parentID, err)
	}
	if child.Title == "" {
		child.Title = title
	}

	parentContent, _ := content.Resolve(nil, parent.Content, s.now())
	updated := content.InsertReference(parentContent, index, child.ID, child.Title)
	if _, err := s.docs.SaveDocument(ctx, parent.ID, content.NewRecord(parent, updated)); err != nil {
		return child, fmt.Errorf("link child %s into %s: %w", child.ID, parent.ID, err)
	}
	return child, nil
}

// Delete removes a document after stripping references to it from its
// parent. Root documents are refused.
func (s *Service) Delete(ctx context.Context, id content.ID) error {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	if doc.IsRoot {
		return ErrRootDocument
	}
	if parentID := doc.ParentID(); parentID != "" {
		if err := s.unlink(ctx, parentID, id); err != nil {
			s.logger.Warn("remove references from parent", "document", id, "parent", parentID, "error", err)
		}
	}
	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (s *Service) unlink(ctx context.Context, parentID, child content.ID) error {
	parent, err := s.docs.GetDocument(ctx, parentID)
	if err != nil {
		return err
	}
	parentContent, ok := content.Parse(parent.Content)
	if !ok {
		return nil
	}
	updated, changed := content.RemoveReferences(parentContent, child)
	if !changed {
		return nil
	}
	_, err = s.docs.SaveDocument(ctx, parent.ID, content.NewRecord(parent, updated))
	return err
}

// RenameInParent rewrites the parent's references to doc with title. It is a
// no-op for top-level documents or when no reference needs changing.
func (s *Service) RenameInParent(ctx context.Context, doc content.Document, title string) error {
	parentID := doc.ParentID()
	if parentID == "" {
		return nil
	}
	parent, err := s.docs.GetDocument(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load parent %s: %w", parentID, err)
	}
	parentContent, ok := content.Parse(parent.Content)
	if !ok {
		return nil
	}
	updated, changed := content.RenameReferences(parentContent, doc.ID, title)
	if !changed {
		return nil
	}
	if _, err := s.docs.SaveDocument(ctx, parent.ID, content.NewRecord(parent, updated)); err != nil {
		return fmt.Errorf("save parent %s: %w", parentID, err)
	}
	return nil
}

func (s *Service) ToggleFavorite(ctx context.Context, id content.ID) (bool, error) {
	doc, err := s.docs.ToggleFavorite(ctx, id)
	if err != nil {
		return false, err
	}
	return doc.IsFavorite, nil
}

func (s *Service) Share(ctx context.Context, id, user content.ID, role string, includeChildren bool) (api.AccessRight, error) {
	if !rbac.Grantable(role) {
		return api.AccessRight{}, ErrInvalidRole
	}
	return s.docs.Share(ctx, id, api.ShareRequest{User: user, Role: role, IncludeChildren: includeChildren})
}

// ToggleTask marks the task at blockIndex done or open and saves the
// document. Blocks with an id are also reported to the task endpoint so the
// change shows up in the history.
func (s *Service) ToggleTask(ctx context.Context, id content.ID, blockIndex int, completed bool) (content.Content, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return content.Content{}, fmt.Errorf("load %s: %w", id, err)
	}
	current, _ := content.Resolve(nil, doc.Content, s.now())
	updated, err := content.SetTaskChecked(current, blockIndex, completed)
	if err != nil {
		return content.Content{}, err
	}
	if _, err := s.docs.SaveDocument(ctx, id, content.NewRecord(doc, updated)); err != nil {
		return content.Content{}, fmt.Errorf("save %s: %w", id, err)
	}
	if blockID := updated.Blocks[blockIndex].ID; blockID != "" {
		if err := s.docs.ToggleTask(ctx, id, blockID, completed); err != nil {
			s.logger.Debug("task history not recorded", "document", id, "block", blockID, "error", err)
		}
	}
	return updated, nil
}
