// Package textutil provides text processing utilities for OCR text
// fingerprinting and filename sanitization.
//
// The primary use cases are:
//   - Creating token-based fingerprints from recognized frame text
//   - Computing cosine similarity between fingerprints to detect near
//     duplicate slides
//   - Sanitizing job titles for safe filesystem use
//
// Fingerprints use term frequency vectors normalized for efficient comparison.
// The tokenization process lowercases text, splits on non-alphanumeric characters,
// and filters tokens shorter than 3 characters.
package textutil
