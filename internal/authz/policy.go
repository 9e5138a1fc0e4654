package authz

import (
	"context"
	"errors"
	"fmt"

	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/models"
)

// ErrDenied is returned when the caller may not perform an operation.
var ErrDenied = errors.New("missing or insufficient permissions")

// Access is the minimum caller level an operation requires.
type Access int

const (
	Nobody Access = iota
	Public
	SignedIn
	Owner // the user whose users/{uid} subtree is addressed, or an admin
	AdminOnly
)

type rule struct {
	pattern string
	read    Access
	create  Access
	update  Access
	delete  Access
	// ownerUpdate, when set, lets the owner apply field updates it accepts
	// even though update itself requires more.
	ownerUpdate func(fields map[string]interface{}) bool
}

func catalogRule(pattern string) rule {
	return rule{pattern: pattern, read: Public, create: AdminOnly, update: AdminOnly, delete: AdminOnly}
}

// Collection patterns use "*" for a single document id segment.
var rules = []rule{
	catalogRule(models.ConditionsCollection),
	catalogRule(models.TreatmentGuidesCollection),
	catalogRule(models.TherapistsCollection),
	catalogRule(models.ProductsCollection),
	catalogRule(models.SubscriptionPlansCollection),
	catalogRule(models.SocialLinksCollection),
	catalogRule("contactInformation"),
	catalogRule("therapists/*/" + models.AvailabilitySubcollection),
	{pattern: "therapists/*/" + models.AppointmentsSubcollection, read: AdminOnly, create: SignedIn, update: AdminOnly, delete: AdminOnly},
	{pattern: models.AdminsCollection, read: AdminOnly, create: AdminOnly, update: AdminOnly, delete: AdminOnly},
	{pattern: models.ContactSubmissionsCollection, read: AdminOnly, create: Public, update: AdminOnly, delete: AdminOnly},
	{pattern: models.FeedbackCollection, read: Public, create: SignedIn, update: AdminOnly, delete: AdminOnly},
	{pattern: models.UsersCollection, read: Owner, create: Owner, update: Owner, delete: AdminOnly},
	{pattern: "users/*/" + models.SubscriptionsSubcollection, read: Owner, create: Owner, update: AdminOnly, delete: AdminOnly, ownerUpdate: cancelOnly},
}

// cancelOnly accepts an update that does nothing but cancel a subscription.
func cancelOnly(fields map[string]interface{}) bool {
	return len(fields) == 1 && fields["status"] == models.SubscriptionCancelled
}

// Policy decides whether the principal in a context may perform an operation
// on a path.
type Policy struct {
	store        db.DocumentStore
	bootstrapUID string
}

// NewPolicy creates a policy. Admins are the bootstrap UID plus every user
// with a document in the admins collection.
func NewPolicy(store db.DocumentStore, bootstrapUID string) *Policy {
	return &Policy{store: store, bootstrapUID: bootstrapUID}
}

// IsAdmin reports whether the caller in ctx is an administrator.
func (p *Policy) IsAdmin(ctx context.Context) (bool, error) {
	pr := PrincipalFrom(ctx)
	if pr == nil || pr.UID == "" {
		return false, nil
	}
	if p.bootstrapUID != "" && pr.UID == p.bootstrapUID {
		return true, nil
	}
	_, err := p.store.Get(ctx, db.Join(models.AdminsCollection, pr.UID))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check admin %s: %w", pr.UID, err)
	}
	return true, nil
}

// Authorize checks a single operation on a collection or document path.
func (p *Policy) Authorize(ctx context.Context, op diag.Operation, path string) error {
	segs := db.SplitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrDenied)
	}
	collSegs := segs
	if len(segs)%2 == 0 {
		collSegs = segs[:len(segs)-1]
	}
	r, ok := lookup(collSegs)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrDenied, op, path)
	}

	owner := ""
	if segs[0] == models.UsersCollection && len(segs) >= 2 {
		owner = segs[1]
	}
	ok, err := p.allowed(ctx, r.access(op), owner)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrDenied, op, path)
	}
	return nil
}

// AuthorizeUpdate checks a field update on a document. Besides the update
// rule it honours owner exceptions that depend on the fields written.
func (p *Policy) AuthorizeUpdate(ctx context.Context, docPath string, fields map[string]interface{}) error {
	err := p.Authorize(ctx, diag.OpUpdate, docPath)
	if err == nil || !errors.Is(err, ErrDenied) {
		return err
	}
	segs := db.SplitPath(docPath)
	if len(segs)%2 != 0 {
		return err
	}
	r, ok := lookup(segs[:len(segs)-1])
	if !ok || r.ownerUpdate == nil || !r.ownerUpdate(fields) {
		return err
	}
	if pr := PrincipalFrom(ctx); pr != nil && segs[0] == models.UsersCollection && pr.UID == segs[1] {
		return nil
	}
	return err
}

// AuthorizeQuery checks a list operation for a query descriptor. Collection
// group queries span every owner and are admin only.
func (p *Policy) AuthorizeQuery(ctx context.Context, q db.Query) error {
	if !q.Group {
		return p.Authorize(ctx, diag.OpList, q.Path)
	}
	ok, err := p.IsAdmin(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: list on group %s", ErrDenied, q.Path)
	}
	return nil
}

func (p *Policy) allowed(ctx context.Context, access Access, owner string) (bool, error) {
	pr := PrincipalFrom(ctx)
	switch access {
	case Public:
		return true, nil
	case SignedIn:
		return pr != nil, nil
	case Owner:
		if pr != nil && owner != "" && pr.UID == owner {
			return true, nil
		}
		return p.IsAdmin(ctx)
	case AdminOnly:
		return p.IsAdmin(ctx)
	default:
		return false, nil
	}
}

func (r rule) access(op diag.Operation) Access {
	switch op {
	case diag.OpGet, diag.OpList:
		return r.read
	case diag.OpCreate:
		return r.create
	case diag.OpUpdate:
		return r.update
	case diag.OpDelete:
		return r.delete
	default:
		return Nobody
	}
}

func lookup(collSegs []string) (rule, bool) {
	for _, r := range rules {
		if matchPattern(db.SplitPath(r.pattern), collSegs) {
			return r, true
		}
	}
	return rule{}, false
}

func matchPattern(pattern, segs []string) bool {
	if len(pattern) != len(segs) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != segs[i] {
			return false
		}
	}
	return true
}
