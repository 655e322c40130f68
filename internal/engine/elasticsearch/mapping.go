package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for reference records.
const DefaultIndexName = "address_references"

// buildIndexMapping returns the full JSON mapping for the reference index.
// Keyword fields are lowercased so exact and fuzzy clauses are
// case-insensitive; street and the denormalized complete field also carry a
// Dutch-analyzed text form, and street an edge n-gram form for suggestions.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": {
          "type": "custom",
          "filter": ["lowercase"]
        }
      },
      "analyzer": {
        "dutch_address": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding", "dutch_stop", "dutch_stemmer"]
        },
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase", "asciifolding"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      },
      "filter": {
        "dutch_stop": {
          "type": "stop",
          "stopwords": "_dutch_"
        },
        "dutch_stemmer": {
          "type": "stemmer",
          "language": "dutch"
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":           { "type": "keyword" },
      "postcode":     { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "street":       { "type": "keyword", "normalizer": "lowercase_normalizer", "fields": { "dutch": { "type": "text", "analyzer": "dutch_address" }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "city":         { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "municipality": { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "numbertype":   { "type": "keyword" },
      "minnumber":    { "type": "integer" },
      "maxnumber":    { "type": "integer" },
      "complete":     { "type": "text", "analyzer": "dutch_address" }
    }
  }
}`
}
