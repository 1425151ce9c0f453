package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"exam-editor/internal/domain"
	"exam-editor/internal/storage"
)

const (
	maxSubmissionBytes = 1 << 20
	presignTTL         = 15 * time.Minute
)

var (
	// ErrInvalidSubmission is returned for a missing or malformed assignment or empty code.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrSubmissionTooLarge is returned when the code exceeds the upload limit.
	ErrSubmissionTooLarge = errors.New("submission too large")
	// ErrForbidden is returned when a principal reaches for another user's data.
	ErrForbidden = errors.New("forbidden")
)

var assignmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var languageExtensions = map[string]string{
	"javascript": "js",
	"typescript": "ts",
	"python":     "py",
	"go":         "go",
	"java":       "java",
	"c":          "c",
	"cpp":        "cpp",
	"csharp":     "cs",
	"rust":       "rs",
	"sql":        "sql",
	"html":       "html",
	"css":        "css",
}

// SubmissionInput is the editor content a principal wants to archive.
type SubmissionInput struct {
	Assignment string
	Language   string
	Code       string
}

// SubmissionService archives editor contents per user and assignment.
type SubmissionService struct {
	store     storage.Service
	bucket    string
	keyPrefix string
	now       func() time.Time
}

func NewSubmissionService(store storage.Service, bucket, keyPrefix string) *SubmissionService {
	return &SubmissionService{
		store:     store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		now:       time.Now,
	}
}

func (s *SubmissionService) configured() bool {
	return s != nil && s.store != nil && s.bucket != ""
}

func (s *SubmissionService) rootPrefix() string {
	if s.keyPrefix == "" {
		return ""
	}
	return s.keyPrefix + "/"
}

func (s *SubmissionService) userPrefix(userID int64) string {
	return s.rootPrefix() + strconv.FormatInt(userID, 10) + "/"
}

func (s *SubmissionService) Submit(ctx context.Context, p domain.Principal, in SubmissionInput) (*domain.Submission, error) {
	if !s.configured() {
		return nil, storage.ErrNotConfigured
	}
	if !assignmentPattern.MatchString(in.Assignment) || strings.TrimSpace(in.Code) == "" {
		return nil, ErrInvalidSubmission
	}
	if len(in.Code) > maxSubmissionBytes {
		return nil, ErrSubmissionTooLarge
	}

	language := strings.ToLower(strings.TrimSpace(in.Language))
	ext, ok := languageExtensions[language]
	if !ok {
		ext = "txt"
	}

	key := s.userPrefix(p.UserID) + path.Join(in.Assignment, uuid.NewString()+"."+ext)
	location, err := s.store.PutObject(ctx, strings.NewReader(in.Code), storage.PutOptions{
		Bucket:      s.bucket,
		Key:         key,
		ContentType: "text/plain; charset=utf-8",
		Metadata: map[string]string{
			"language": language,
			"owner":    strconv.FormatInt(p.UserID, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}

	return &domain.Submission{
		Key:        key,
		Location:   location,
		Assignment: in.Assignment,
		Language:   language,
		OwnerID:    p.UserID,
		Size:       int64(len(in.Code)),
		CreatedAt:  s.now().UTC(),
	}, nil
}

// List returns the principal's own submissions. With everyone set, which only
// admins may do, it returns all users' submissions. An empty assignment
// matches all assignments.
func (s *SubmissionService) List(ctx context.Context, p domain.Principal, assignment string, everyone bool) ([]domain.Submission, error) {
	if !s.configured() {
		return nil, storage.ErrNotConfigured
	}
	if everyone && !p.IsAdmin() {
		return nil, ErrForbidden
	}
	if assignment != "" && !assignmentPattern.MatchString(assignment) {
		return nil, ErrInvalidSubmission
	}

	prefix := s.userPrefix(p.UserID)
	if everyone {
		prefix = s.rootPrefix()
	} else if assignment != "" {
		prefix += assignment + "/"
	}

	objects, err := s.store.ListObjects(ctx, s.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	out := make([]domain.Submission, 0, len(objects))
	for _, obj := range objects {
		sub, ok := s.parseKey(obj.Key)
		if !ok {
			continue
		}
		if assignment != "" && sub.Assignment != assignment {
			continue
		}
		sub.Size = obj.Size
		if obj.LastModified != nil {
			sub.CreatedAt = *obj.LastModified
		}
		sub.Location = fmt.Sprintf("s3://%s/%s", s.bucket, obj.Key)
		out = append(out, sub)
	}
	return out, nil
}

// PresignURL returns a short-lived download link for a submission.
func (s *SubmissionService) PresignURL(ctx context.Context, p domain.Principal, key string) (string, error) {
	if !s.configured() {
		return "", storage.ErrNotConfigured
	}
	sub, ok := s.parseKey(key)
	if !ok {
		return "", ErrInvalidSubmission
	}
	if !p.IsAdmin() && sub.OwnerID != p.UserID {
		return "", ErrForbidden
	}
	return s.store.PresignGet(ctx, s.bucket, key, presignTTL)
}

// parseKey splits <prefix>/<owner>/<assignment>/<file>.
func (s *SubmissionService) parseKey(key string) (domain.Submission, bool) {
	rest, ok := strings.CutPrefix(key, s.rootPrefix())
	if !ok {
		return domain.Submission{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return domain.Submission{}, false
	}
	owner, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || !assignmentPattern.MatchString(parts[1]) || parts[2] == "" {
		return domain.Submission{}, false
	}

	language := ""
	ext := strings.TrimPrefix(path.Ext(parts[2]), ".")
	for lang, e := range languageExtensions {
		if e == ext {
			language = lang
			break
		}
	}
	return domain.Submission{
		Key:        key,
		Assignment: parts[1],
		Language:   language,
		OwnerID:    owner,
	}, true
}
