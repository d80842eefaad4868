package middleware

import (
	"errors"
	"unicode/utf8"
)

// maxPromptLength bounds the seed prompt of an AI conversation.
const maxPromptLength = 4000

// ValidatePrompt validates an optional conversation seed prompt.
func ValidatePrompt(prompt string) error {
	if len(prompt) > maxPromptLength {
		return errors.New("prompt_1 exceeds maximum length")
	}
	if !utf8.ValidString(prompt) {
		return errors.New("prompt_1 must be valid UTF-8")
	}
	return nil
}

// ValidateImageURL validates an optional avatar URL.
func ValidateImageURL(image string) error {
	if len(image) > 2048 {
		return errors.New("image exceeds maximum length")
	}
	return nil
}
