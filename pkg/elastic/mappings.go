package elastic

const anomalyMapping = `{
  "mappings": {
    "properties": {
      "_key": {
          "type": "keyword"
      },
      "domain": {
          "type": "keyword"
      },
      "anomalous_type": {
          "type": "keyword"
      },
      "last_update": {
          "type": "date",
          "format": "strict_date_optional_time"
      }
    }
  }
}`

const modelMapping = `{
  "mappings": {
    "properties": {
      "key": {
          "type": "keyword"
      },
      "updated_at": {
          "type": "date",
          "format": "strict_date_optional_time"
      },
      "model": {
          "type": "object",
          "enabled": false
      }
    }
  }
}`
