package service

import (
	"net/mail"
	"strings"
	"time"

	catalogdomain "github.com/camphq/camppay/internal/catalog/domain"
	"github.com/camphq/camppay/internal/registration/domain"
)

const dateLayout = "2006-01-02"

// Stay duration values accepted on the form. Partial stays must say when the
// applicant leaves.
const (
	StayFull    = "full"
	StayPartial = "partial"
)

type validator struct {
	fields []domain.FieldError
}

func (v *validator) add(field, code, message string) {
	v.fields = append(v.fields, domain.FieldError{Field: field, Code: code, Message: message})
}

func (v *validator) required(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.add(field, "required", field+" is required")
	}
	return value
}

func (v *validator) consent(field string, accepted bool) {
	if !accepted {
		v.add(field, "consent_required", field+" must be accepted")
	}
}

func (v *validator) err() *domain.ValidationError {
	if len(v.fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: v.fields}
}

// validateSubmit checks the application fields against the selected track.
// It returns the parsed date of birth alongside any per-field failures.
func validateSubmit(req *domain.SubmitRequest, track catalogdomain.Track) (time.Time, *domain.ValidationError) {
	v := &validator{}

	req.FullName = v.required("full_name", req.FullName)
	req.PlaceOfBirth = v.required("place_of_birth", req.PlaceOfBirth)
	req.MothersName = v.required("mothers_name", req.MothersName)
	req.Nationality = v.required("nationality", req.Nationality)
	req.Phone = v.required("phone", req.Phone)
	req.Postcode = v.required("postcode", req.Postcode)
	req.City = v.required("city", req.City)
	req.Street = v.required("street", req.Street)
	req.Major = v.required("major", req.Major)
	req.TShirtSize = v.required("t_shirt_size", req.TShirtSize)

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		v.add("email", "required", "email is required")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		v.add("email", "invalid", "email address is not valid")
	}

	var dob time.Time
	req.DateOfBirth = strings.TrimSpace(req.DateOfBirth)
	if req.DateOfBirth == "" {
		v.add("date_of_birth", "required", "date_of_birth is required")
	} else {
		parsed, err := time.ParseInLocation(dateLayout, req.DateOfBirth, time.Local)
		if err != nil {
			v.add("date_of_birth", "invalid", "date_of_birth must be YYYY-MM-DD")
		} else {
			dob = parsed
		}
	}

	req.Stay = strings.TrimSpace(req.Stay)
	switch req.Stay {
	case StayFull:
	case StayPartial:
		if strings.TrimSpace(req.StayUntil) == "" {
			v.add("stay_until", "required", "stay_until is required for a partial stay")
		}
	case "":
		v.add("stay", "required", "stay is required")
	default:
		v.add("stay", "invalid", "stay must be full or partial")
	}

	req.Campus = strings.TrimSpace(req.Campus)
	if track.RequiresCampus() {
		if req.Campus == "" {
			v.add("campus", "required", "campus is required for this track")
		} else if !containsFold(track.Campuses, req.Campus) {
			v.add("campus", "invalid", "campus is not offered on this track")
		}
	}

	v.consent("accept_privacy", req.AcceptPrivacy)
	v.consent("accept_rules", req.AcceptRules)
	v.consent("accept_responsibility", req.AcceptResponsibility)
	v.consent("accept_photo", req.AcceptPhoto)

	return dob, v.err()
}

func containsFold(values []string, needle string) bool {
	for _, value := range values {
		if strings.EqualFold(value, needle) {
			return true
		}
	}
	return false
}
