package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

var (
	usernameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{2,31}$`)
	phoneRE    = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func ValidatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	if n > maxPasswordLen {
		return invalid("password must be at most %d characters", maxPasswordLen)
	}
	return nil
}

func validateUsername(u string) error {
	if !usernameRE.MatchString(u) {
		return invalid("username must be 3-32 letters, digits, '.', '_' or '-'")
	}
	return nil
}

func validateEmail(e string) error {
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return invalid("email address is not valid")
	}
	return nil
}

// validatePhone accepts an empty number; phones are optional.
func validatePhone(p string) error {
	if p != "" && !phoneRE.MatchString(p) {
		return invalid("phone must be in E.164 form, e.g. +12065550100")
	}
	return nil
}

func normalize(in *RegisterInput) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in RegisterInput) validate() error {
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePhone(in.Phone); err != nil {
		return err
	}
	return ValidatePassword(in.Password)
}
