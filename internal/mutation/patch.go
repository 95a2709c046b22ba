package mutation

import "github.com/five82/shelf/internal/library"

// Patches never modify the slice they receive; cached values are shared with
// readers.

func booksOf(v any) []library.Book {
	books, _ := v.([]library.Book)
	return books
}

func indexOf(books []library.Book, match func(library.Book) bool) int {
	for i, b := range books {
		if match(b) {
			return i
		}
	}
	return -1
}

func byID(id int64) func(library.Book) bool {
	return func(b library.Book) bool { return b.ID == id }
}

func byCorrelation(corr string) func(library.Book) bool {
	return func(b library.Book) bool { return b.Correlation == corr }
}

func appendBook(books []library.Book, b library.Book) []library.Book {
	out := make([]library.Book, 0, len(books)+1)
	out = append(out, books...)
	return append(out, b)
}

func replaceAt(books []library.Book, idx int, b library.Book) []library.Book {
	out := library.CloneBooks(books)
	out[idx] = b
	return out
}

func removeAt(books []library.Book, idx int) []library.Book {
	out := make([]library.Book, 0, len(books)-1)
	out = append(out, books[:idx]...)
	return append(out, books[idx+1:]...)
}

// insertAt places b at idx, clamped to the list bounds.
func insertAt(books []library.Book, idx int, b library.Book) []library.Book {
	if idx < 0 {
		idx = 0
	}
	if idx > len(books) {
		idx = len(books)
	}
	out := make([]library.Book, 0, len(books)+1)
	out = append(out, books[:idx]...)
	out = append(out, b)
	return append(out, books[idx:]...)
}

// settle swaps the placeholder for the server's record. If the placeholder is
// gone (a refetch replaced the list mid-flight) the record is matched by id
// or appended.
func settle(books []library.Book, corr string, b library.Book) []library.Book {
	if idx := indexOf(books, byCorrelation(corr)); idx >= 0 {
		return replaceAt(books, idx, b)
	}
	if idx := indexOf(books, byID(b.ID)); idx >= 0 {
		return replaceAt(books, idx, b)
	}
	return appendBook(books, b)
}
