package api

import "testing"

func TestValidateRelativePath(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		exts    []string
		wantErr bool
	}{
		{"empty is ok", "", []string{DocxExtension}, false},
		{"valid docx", "templates/a.docx", []string{DocxExtension}, false},
		{"valid audio", "audio/a.mp3", AudioExtensions, false},
		{"traversal rejected", "../etc/passwd.docx", []string{DocxExtension}, true},
		{"absolute rejected", "/etc/passwd.docx", []string{DocxExtension}, true},
		{"wrong extension", "a.txt", []string{DocxExtension}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateRelativePath("f", c.path, c.exts)
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, c.wantErr)
			}
		})
	}
}

func TestValidateLanguageCode(t *testing.T) {
	cases := []struct {
		name      string
		code      string
		allowAuto bool
		wantErr   bool
	}{
		{"empty is ok", "", false, false},
		{"plain code", "en", false, false},
		{"regional code", "en-US", false, false},
		{"auto allowed", "auto", true, false},
		{"auto disallowed", "auto", false, true},
		{"garbage", "!!!", false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateLanguageCode("f", c.code, c.allowAuto)
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, c.wantErr)
			}
		})
	}
}
