package core

// CategoryTotal is the summed amount for one category.
type CategoryTotal struct {
	Category string
	Total    float64
}

// Statistics is a compact summary over the full record set.
type Statistics struct {
	Count      int64
	Total      float64
	Average    float64
	Min        float64
	Max        float64
	ByCategory []CategoryTotal
}
