package column

import "testing"

func TestCategoryValidate(t *testing.T) {
	cases := []struct {
		cat   Category
		value string
		want  bool
	}{
		{CategoryText, "Hello, World!", true},
		{CategoryUpperCase, "HELLO, WORLD!", true},
		{CategoryUpperCase, "Hello, World!", false},
		{CategoryLowerCase, "hello, world!", true},
		{CategoryLowerCase, "Hello, World!", false},
		{CategoryInteger, "32767", true},
		{CategoryInteger, "-47", true},
		{CategoryInteger, "40000", false},
		{CategoryDoubleInteger, "2147483647", true},
		{CategoryDoubleInteger, "-99999", true},
		{CategoryDoubleInteger, "3000000000", false},
		{CategoryIdentifier, "HelloWorld", true},
		{CategoryIdentifier, "_99.Bottles", true},
		{CategoryIdentifier, "$HELLO", false},
		{CategoryIdentifier, "3.14159", false},
		{CategoryProperty, "HelloWorld", true},
		{CategoryProperty, "%HelloWorld", true},
		{CategoryProperty, "%", false},
		{CategoryProperty, "Hello%World", false},
		{CategoryGuid, "{34AB5C53-9B30-4E14-AEF0-2C1C7BA826C0}", true},
		{CategoryGuid, "{34AB5C539B304E14AEF02C1C7BA826C0}", false},
		{CategoryGuid, "{34ab5c53-9b30-4e14-aef0-2c1c7ba826c0}", false},
		{CategoryGuid, "34AB5C53-9B30-4E14-AEF0-2C1C7BA826C0", false},
		{CategoryVersion, "1", true},
		{CategoryVersion, "1.22", true},
		{CategoryVersion, "1.22.3", true},
		{CategoryVersion, "1.22.3.444", true},
		{CategoryVersion, "1.99999", false},
		{CategoryVersion, ".12", false},
		{CategoryVersion, "1.2.3.4.5", false},
		{CategoryLanguage, "1033", true},
		{CategoryLanguage, "1083,2107,3131", true},
		{CategoryLanguage, "", false},
		{CategoryLanguage, "1083,2107,3131,", false},
		{CategoryLanguage, "1083,,3131", false},
		{CategoryLanguage, "en-US", false},
		{CategoryCabinet, "hello.txt", true},
		{CategoryCabinet, "#HelloWorld", true},
		{CategoryCabinet, "longfilename.long", false},
		{CategoryCabinet, "#123.456", false},
	}
	for _, c := range cases {
		if got := c.cat.Validate(c.value); got != c.want {
			t.Errorf("%v.Validate(%q) = %v, want %v", c.cat, c.value, got, c.want)
		}
	}
}

func TestCategoryStringRoundTrip(t *testing.T) {
	for cat := range categoryNames {
		s := cat.String()
		back, err := ParseCategory(s)
		if err != nil {
			t.Fatalf("ParseCategory(%q): %v", s, err)
		}
		if back != cat {
			t.Fatalf("round trip of %v via %q gave %v", cat, s, back)
		}
	}
}

func TestParseCategoryAliases(t *testing.T) {
	if c, err := ParseCategory("Guid"); err != nil || c != CategoryGuid {
		t.Fatalf("ParseCategory(Guid) = %v, %v", c, err)
	}
	if c, err := ParseCategory("FormattedSddlText"); err != nil || c != CategoryFormattedSddlText {
		t.Fatalf("ParseCategory(FormattedSddlText) = %v, %v", c, err)
	}
}

func TestParseCategoryInvalid(t *testing.T) {
	if _, err := ParseCategory("NotACategory"); err == nil {
		t.Fatal("expected an error for an unrecognized category")
	}
}
