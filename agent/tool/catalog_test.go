package tool

import (
	"testing"
)

func TestCatalogCoversEveryTool(t *testing.T) {
	t.Parallel()

	infos := Catalog()
	if len(infos) != 8 {
		t.Fatalf("expected 8 tool infos, got %d", len(infos))
	}
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		if !Known(info.Name) {
			t.Errorf("catalog advertises unknown tool %s", info.Name)
		}
		if seen[info.Name] {
			t.Errorf("duplicate tool %s", info.Name)
		}
		seen[info.Name] = true
		if info.Desc == "" {
			t.Errorf("tool %s has no description", info.Name)
		}
	}
	if !Known(BookAppointment) || Known("delete_everything") {
		t.Fatal("Known does not match the catalog")
	}
}

func TestStringArg(t *testing.T) {
	t.Parallel()

	args := map[string]any{
		"phone_number": " 5551234567 ",
		"count":        3,
		"empty":        "",
	}

	got, err := StringArg(args, "phone_number")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "5551234567" {
		t.Fatalf("expected trimmed value, got %q", got)
	}

	if _, err := StringArg(args, "missing"); err == nil {
		t.Fatal("expected error for missing argument")
	}
	if _, err := StringArg(args, "empty"); err == nil {
		t.Fatal("expected error for empty argument")
	}
	if _, err := StringArg(args, "count"); err == nil {
		t.Fatal("expected error for non-string argument")
	}
}

func TestOptionalArg(t *testing.T) {
	t.Parallel()

	args := map[string]any{"date": "tomorrow", "nil": nil}

	got, err := OptionalArg(args, "date")
	if err != nil || got != "tomorrow" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	got, err = OptionalArg(args, "absent")
	if err != nil || got != "" {
		t.Fatalf("absent key: got (%q, %v)", got, err)
	}
	got, err = OptionalArg(args, "nil")
	if err != nil || got != "" {
		t.Fatalf("nil value: got (%q, %v)", got, err)
	}
}
