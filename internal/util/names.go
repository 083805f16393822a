package util

import "math/rand"

var displayNames = []string{
	"Taylor Swift", "Emma Watson", "Ryan Gosling", "Zendaya",
	"Michael Jordan", "Ariana Grande", "Leonardo DiCaprio", "Billie Eilish",
	"Chris Evans", "Margot Robbie", "The Weeknd", "Dua Lipa",
	"John Doe", "Jane Smith", "Alex Johnson", "Sam Wilson",
	"Casey Brown", "Jordan Lee", "Taylor Davis", "Morgan White",
}

// RandomDisplayName picks a stand-in partner name. Demo only: no real lookup happens.
func RandomDisplayName() string {
	return displayNames[rand.Intn(len(displayNames))]
}

func DisplayNames() []string {
	names := make([]string, len(displayNames))
	copy(names, displayNames)
	return names
}
