package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type unknownIdentityError struct {
	arg        string
	suggestion string
}

func (e unknownIdentityError) Error() string {
	if e.suggestion != "" {
		return fmt.Sprintf("unknown identity %q (did you mean %s?)", e.arg, e.suggestion)
	}
	return fmt.Sprintf("unknown identity %q; run `secagent users` to list identities", e.arg)
}

func errUnknownIdentity(arg, suggestion string) error {
	return unknownIdentityError{arg: arg, suggestion: suggestion}
}

type ambiguousIdentityError struct {
	arg string
	ids []string
}

func (e ambiguousIdentityError) Error() string {
	return fmt.Sprintf("identity %q is ambiguous: %v", e.arg, e.ids)
}

func errAmbiguousIdentity(arg string, ids []string) error {
	return ambiguousIdentityError{arg: arg, ids: ids}
}
