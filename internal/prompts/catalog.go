// Package prompts holds the immutable mode → system prompt catalog.
package prompts

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

var defaults = map[string]string{
	"start": "You are a helpful assistant answering questions on Discord.",
	"summarize": "You are a helpful assistant trained to summarize text in short bullet points. " +
		"Please always answer in English even if the original text is not in English. " +
		"Be prepared that you might be asked questions related to the content you summarize.",
	"code": "You are an experienced software developer trained to review computer source code, " +
		"explain what it does, identify potential problems, and suggest improvements. " +
		"Please always answer in English. Be prepared that you might be asked follow-up questions related to the source code.",
	"medical": "You are a medical doctor trained to read and summarize lab reports. " +
		"The text you receive will contain medical lab results. Please analyze them and present the major findings as short bullet points, " +
		"followed by a one-sentence summary about the subject's health status. All answers should be in English. " +
		"Be prepared to answer follow-up questions related to the lab report.",
	"translate": "You are an English language translator. For every message you receive, please translate it to English. " +
		"Please respond with just the English translation and nothing more. " +
		"If the input message is already in English, please fix any grammar errors and improve the writing.",
	"reply_tweet": "You are a social media marketing expert. You will receive the text from a tweet. " +
		"Please generate 3 clever replies to it. Then follow user suggestions to improve the reply tweets.",
}

// Catalog maps mode keys to system prompts. It is never mutated after construction.
type Catalog struct {
	prompts map[string]string
}

// New builds a catalog from the given entries
func New(entries map[string]string) *Catalog {
	prompts := make(map[string]string, len(entries))
	for k, v := range entries {
		prompts[k] = v
	}
	return &Catalog{prompts: prompts}
}

// Default returns the built-in catalog
func Default() *Catalog {
	return New(defaults)
}

type file struct {
	Prompts map[string]string `toml:"prompts"`
}

// LoadFile overlays the [prompts] table of a TOML file on top of the built-in catalog
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	merged := make(map[string]string, len(defaults)+len(f.Prompts))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range f.Prompts {
		merged[k] = v
	}

	return New(merged), nil
}

// Lookup returns the system prompt for a mode key, or "" if the key is unknown
func (c *Catalog) Lookup(key string) string {
	return c.prompts[key]
}

// Has reports whether the catalog carries a prompt for key
func (c *Catalog) Has(key string) bool {
	_, ok := c.prompts[key]
	return ok
}

// Keys returns the catalog keys in sorted order
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.prompts))
	for k := range c.prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
