package mockserver

import (
	"log/slog"
	"strings"
)

// Fallback is returned when no route matches the prompt.
const Fallback = "I'm a mock AI assistant running Qwen3 0.6B. I can help you with code generation, explanation, documentation, testing, and more!"

type route struct {
	name   string
	match  func(lower string) bool
	answer string
}

func containsAll(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if !strings.Contains(s, w) {
				return false
			}
		}
		return true
	}
}

func containsAny(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}
}

// Routes are checked in order; the first match wins.
var routes = []route{
	{"codeGeneration", containsAll("generate", "code"), `function validateEmail(email) {
    const emailRegex = /^[^\s@]+@[^\s@]+\.[^\s@]+$/;
    return emailRegex.test(email);
}`},
	{"codeExplanation", containsAll("explain", "code"), "This code defines a function called `validateEmail` that checks an address against a regular expression.\n\n" +
		"1. `^[^\\s@]+` matches the local part.\n" +
		"2. `@` matches the separator.\n" +
		"3. `[^\\s@]+\\.[^\\s@]+$` matches the domain and top-level domain.\n\n" +
		"`test()` returns true when the whole string matches."},
	{"documentation", containsAny("documentation", "jsdoc"), `/**
 * Validates an email address using regex pattern matching
 * @param {string} email - The email address to validate
 * @returns {boolean} True if the email is valid, false otherwise
 */`},
	{"unitTests", containsAny("unit test", "test"), `describe('validateEmail', () => {
  test('accepts valid addresses', () => {
    expect(validateEmail('user@example.com')).toBe(true);
  });

  test('rejects invalid addresses', () => {
    expect(validateEmail('invalid-email')).toBe(false);
  });
});`},
	{"commitMessage", containsAny("commit message"), `feat: add email validation utility

Add validateEmail with regex pattern matching`},
	{"refactoring", containsAny("refactor"), `function validateEmail(email) {
    if (!email || typeof email !== 'string') {
        return false;
    }
    email = email.trim();
    if (email.length === 0 || email.length > 254) {
        return false;
    }
    return /^[^\s@]+@[^\s@]+\.[^\s@]+$/.test(email);
}`},
	{"problemFinding", containsAny("problem", "issue"), "**Potential Issues Found:**\n\n" +
		"1. **No input validation**: null or non-string input is not rejected.\n" +
		"2. **No length check**: very long strings are accepted.\n" +
		"3. **No trimming**: surrounding whitespace makes valid addresses fail."},
	{"nameGeneration", containsAny("name", "suggest"), "**Better names for `validateEmail`:**\n\n" +
		"1. `isValidEmail` - boolean naming convention\n" +
		"2. `checkEmailFormat` - says what is checked\n" +
		"3. `isEmailValid` - clear boolean intent"},
	{"errorExplanation", containsAny("error", "typeerror"), "**TypeError: Cannot read property 'length' of undefined**\n\n" +
		"The code reads `length` from a variable that is `undefined`.\n\n" +
		"Check the value first or use optional chaining: `const n = value?.length ?? 0;`"},
	{"languageConversion", containsAny("convert", "python"), `import re

def validate_email(email):
    if not email or not isinstance(email, str):
        return False
    return bool(re.match(r'^[^\s@]+@[^\s@]+\.[^\s@]+$', email))`},
}

// Answer picks the canned answer for a prompt by keyword.
func Answer(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, r := range routes {
		if r.match(lower) {
			slog.Debug("mock_route", "route", r.name)
			return r.answer
		}
	}
	return Fallback
}
