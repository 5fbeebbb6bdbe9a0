// Package catalog implements the external book catalog clients: Naver book
// search as the primary source and Google Books as the fallback, together
// with the retry, caching and normalization helpers they share.
package catalog
