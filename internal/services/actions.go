package services

import (
	"context"
	"fmt"
)

// FileAction is one of the mutations a caller can pick for a file:
// RenameAction, ShareAction, RemoveCollaboratorAction or DeleteAction.
type FileAction interface {
	fileAction()
}

type RenameAction struct {
	Name      string
	Extension string
}

type ShareAction struct {
	Emails []string
}

type RemoveCollaboratorAction struct {
	Email string
}

type DeleteAction struct{}

func (RenameAction) fileAction()             {}
func (ShareAction) fileAction()              {}
func (RemoveCollaboratorAction) fileAction() {}
func (DeleteAction) fileAction()             {}

// Apply runs action against fileID. DeleteAction returns a nil record.
func (s *FileService) Apply(ctx context.Context, user *User, fileID string, action FileAction, path, ipAddress string) (*FileRecord, error) {
	switch a := action.(type) {
	case RenameAction:
		return s.Rename(ctx, user, fileID, a.Name, a.Extension, path, ipAddress)
	case ShareAction:
		return s.UpdateCollaborators(ctx, user, fileID, a.Emails, path, ipAddress)
	case RemoveCollaboratorAction:
		return s.RemoveCollaborator(ctx, user, fileID, nil, a.Email, path, ipAddress)
	case DeleteAction:
		return nil, s.Delete(ctx, user, fileID, path, ipAddress)
	default:
		return nil, fmt.Errorf("unsupported file action %T", action)
	}
}

// ParseFileAction builds an action from its wire form.
func ParseFileAction(kind, name, extension string, emails []string, email string) (FileAction, error) {
	switch kind {
	case "rename":
		if name == "" {
			return nil, fmt.Errorf("rename requires a name")
		}
		return RenameAction{Name: name, Extension: extension}, nil
	case "share":
		return ShareAction{Emails: emails}, nil
	case "remove-collaborator":
		if email == "" {
			return nil, fmt.Errorf("remove-collaborator requires an email")
		}
		return RemoveCollaboratorAction{Email: email}, nil
	case "delete":
		return DeleteAction{}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", kind)
	}
}
