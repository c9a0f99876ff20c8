package domain

// Item is a catalog entry. The item id is assigned at catalog load time and
// never changes; stock is mutated only through the reservation operations on
// the catalog store.
type Item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Topic string `json:"topic"`
	Cost  int    `json:"cost"`
	Stock int    `json:"stock"`
}
