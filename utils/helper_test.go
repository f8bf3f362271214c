package utils

import "testing"

func TestValidateContactInfo(t *testing.T) {
	cases := []struct {
		contact string
		wantErr bool
	}{
		{"student@campus.edu.cn", false},
		{"not-an-email@", true},
		{"+86 138 0013 8000", false},
		{"12345", true},
		{"dorm 3, room 214", false},
		{"   ", true},
	}
	for _, tc := range cases {
		err := ValidateContactInfo(tc.contact)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateContactInfo(%q) error = %v, wantErr %v", tc.contact, err, tc.wantErr)
		}
	}
}

func TestGenerateUniqueFilename(t *testing.T) {
	a := GenerateUniqueFilename()
	b := GenerateUniqueFilename()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty filenames, got %q and %q", a, b)
	}
}
