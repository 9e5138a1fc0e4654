package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind names a persisted entity type.
type Kind string

const (
	KindCondition          Kind = "condition"
	KindTreatmentGuide     Kind = "treatmentGuide"
	KindTherapist          Kind = "therapist"
	KindProduct            Kind = "product"
	KindSubscriptionPlan   Kind = "subscriptionPlan"
	KindUserSubscription   Kind = "userSubscription"
	KindAdmin              Kind = "admin"
	KindContactSubmission  Kind = "contactSubmission"
	KindFeedback           Kind = "feedback"
	KindSocialLink         Kind = "socialLink"
	KindContactInformation Kind = "contactInformation"
	KindAppointment        Kind = "appointment"
	KindAvailability       Kind = "availability"
	KindUser               Kind = "user"
)

// Top level collection names and the fixed contact information document.
const (
	ConditionsCollection         = "conditions"
	TreatmentGuidesCollection    = "treatmentGuides"
	TherapistsCollection         = "therapists"
	ProductsCollection           = "products"
	SubscriptionPlansCollection  = "subscriptionPlans"
	AdminsCollection             = "admins"
	ContactSubmissionsCollection = "contactFormSubmissions"
	FeedbackCollection           = "feedback"
	SocialLinksCollection        = "socialLinks"
	UsersCollection              = "users"
	ContactInformationDoc        = "contactInformation/main"

	// Subcollection identifiers.
	SubscriptionsSubcollection = "subscriptions"
	AppointmentsSubcollection  = "appointments"
	AvailabilitySubcollection  = "availability"
)

// Record is a typed document. ToData never includes the identifier.
type Record interface {
	Kind() Kind
	Validate() error
	ToData() map[string]interface{}
}

// catalogCollections maps the admin-managed catalog collections to their kinds.
var catalogCollections = map[string]Kind{
	ConditionsCollection:        KindCondition,
	TreatmentGuidesCollection:   KindTreatmentGuide,
	TherapistsCollection:        KindTherapist,
	ProductsCollection:          KindProduct,
	SubscriptionPlansCollection: KindSubscriptionPlan,
	SocialLinksCollection:       KindSocialLink,
}

// CatalogKind resolves a catalog collection name.
func CatalogKind(collection string) (Kind, bool) {
	k, ok := catalogCollections[collection]
	return k, ok
}

// CatalogCollections lists the catalog collection names in stable order.
func CatalogCollections() []string {
	out := make([]string, 0, len(catalogCollections))
	for c := range catalogCollections {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ErrUnknownKind is returned for kinds this package cannot construct.
var ErrUnknownKind = errors.New("unknown record kind")

// New returns an empty record of the given kind, ready to be bound from a request.
func New(kind Kind) (Record, error) {
	switch kind {
	case KindCondition:
		return &Condition{}, nil
	case KindTreatmentGuide:
		return &TreatmentGuide{}, nil
	case KindTherapist:
		return &Therapist{}, nil
	case KindProduct:
		return &Product{}, nil
	case KindSubscriptionPlan:
		return &SubscriptionPlan{}, nil
	case KindUserSubscription:
		return &UserSubscription{}, nil
	case KindAdmin:
		return &Admin{}, nil
	case KindContactSubmission:
		return &ContactSubmission{}, nil
	case KindFeedback:
		return &Feedback{}, nil
	case KindSocialLink:
		return &SocialLink{}, nil
	case KindContactInformation:
		return &ContactInformation{}, nil
	case KindAppointment:
		return &Appointment{}, nil
	case KindAvailability:
		return &Availability{}, nil
	case KindUser:
		return &User{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Decode builds a typed record from stored document data.
func Decode(kind Kind, id string, data map[string]interface{}) (Record, error) {
	f := fields(data)
	switch kind {
	case KindCondition:
		return conditionFromData(id, f), nil
	case KindTreatmentGuide:
		return treatmentGuideFromData(id, f), nil
	case KindTherapist:
		return therapistFromData(id, f), nil
	case KindProduct:
		return productFromData(id, f), nil
	case KindSubscriptionPlan:
		return subscriptionPlanFromData(id, f), nil
	case KindUserSubscription:
		return userSubscriptionFromData(id, f), nil
	case KindAdmin:
		return adminFromData(id, f), nil
	case KindContactSubmission:
		return contactSubmissionFromData(id, f), nil
	case KindFeedback:
		return feedbackFromData(id, f), nil
	case KindSocialLink:
		return socialLinkFromData(id, f), nil
	case KindContactInformation:
		return contactInformationFromData(f), nil
	case KindAppointment:
		return appointmentFromData(id, f), nil
	case KindAvailability:
		return availabilityFromData(id, f), nil
	case KindUser:
		return userFromData(id, f), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// ValidationError lists the fields of a record that failed validation.
type ValidationError struct {
	Kind   Kind
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+e.Fields[n])
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(parts, ", "))
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

func validateRecord(kind Kind, rec interface{}) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Kind: kind, Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out.Fields[fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:]] = msg
	}
	return out
}
