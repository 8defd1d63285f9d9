package eval

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/open-feature/assignd/pkg/store"
)

const CheckoutFlag = "checkout-button-color"
const TargetedFlag = "targeted-flag"
const BannerFlag = "banner-flag"

var FixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Shards under the "checkout-experiment" salt: user-42 -> 3066, user-7 -> 7623.
// Under the "traffic" salt: user-42 -> 130, alice -> 4347.
const Flags = `{
  "createdAt": "2024-04-17T19:40:53.716Z",
  "format": "SERVER",
  "environment": {"name": "Test"},
  "flags": {
    "checkout-button-color": {
      "key": "checkout-button-color",
      "enabled": true,
      "variationType": "STRING",
      "variations": {
        "blue": {"key": "blue", "value": "#0000CC"},
        "green": {"key": "green", "value": "#00CC00"}
      },
      "allocations": [
        {
          "key": "internal-users",
          "rules": [
            {"conditions": [{"attribute": "email", "operator": "MATCHES", "value": "@example\\.com$"}]}
          ],
          "splits": [{"variationKey": "green", "shards": []}],
          "doLog": false
        },
        {
          "key": "experiment",
          "splits": [
            {
              "variationKey": "blue",
              "shards": [{"salt": "checkout-experiment", "ranges": [{"start": 0, "end": 5000}]}]
            },
            {
              "variationKey": "green",
              "shards": [{"salt": "checkout-experiment", "ranges": [{"start": 5000, "end": 10000}]}],
              "extraLogging": {"cohort": "treatment"}
            }
          ]
        }
      ],
      "totalShards": 10000
    },
    "targeted-flag": {
      "key": "targeted-flag",
      "enabled": true,
      "variationType": "BOOLEAN",
      "variations": {
        "on": {"key": "on", "value": true},
        "off": {"key": "off", "value": false}
      },
      "allocations": [
        {
          "key": "future",
          "startAt": "2999-01-01T00:00:00Z",
          "splits": [{"variationKey": "off", "shards": []}]
        },
        {
          "key": "ended",
          "endAt": "2000-01-01T00:00:00Z",
          "splits": [{"variationKey": "off", "shards": []}]
        },
        {
          "key": "beta-testers",
          "rules": [
            {"conditions": [{"attribute": "country", "operator": "ONE_OF", "value": ["US", "CA"]}]}
          ],
          "splits": [
            {
              "variationKey": "on",
              "shards": [{"salt": "traffic", "ranges": [{"start": 0, "end": 1000}]}]
            }
          ]
        }
      ]
    },
    "integer-flag": {
      "key": "integer-flag",
      "enabled": true,
      "variationType": "INTEGER",
      "variations": {"answer": {"key": "answer", "value": 42}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "answer", "shards": []}]}]
    },
    "numeric-flag": {
      "key": "numeric-flag",
      "enabled": true,
      "variationType": "NUMERIC",
      "variations": {"pi": {"key": "pi", "value": 3.14}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "pi", "shards": []}]}]
    },
    "json-flag": {
      "key": "json-flag",
      "enabled": true,
      "variationType": "JSON",
      "variations": {"config": {"key": "config", "value": "{\"limit\": 10}"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "config", "shards": []}]}]
    },
    "disabled-flag": {
      "key": "disabled-flag",
      "enabled": false,
      "variationType": "INTEGER",
      "variations": {"one": {"key": "one", "value": 1}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "one", "shards": []}]}]
    },
    "broken-flag": {
      "key": "broken-flag",
      "enabled": true,
      "variationType": "NOT_A_TYPE",
      "variations": {},
      "allocations": []
    },
    "missing-variation-flag": {
      "key": "missing-variation-flag",
      "enabled": true,
      "variationType": "STRING",
      "variations": {"a": {"key": "a", "value": "a"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "ghost", "shards": []}]}]
    },
    "banner-flag": {
      "key": "banner-flag",
      "enabled": true,
      "variationType": "STRING",
      "variations": {"banner-bandit": {"key": "banner-bandit", "value": "banner-bandit"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "banner-bandit", "shards": []}]}]
    },
    "unmodelled-flag": {
      "key": "unmodelled-flag",
      "enabled": true,
      "variationType": "STRING",
      "variations": {"unmodelled-bandit": {"key": "unmodelled-bandit", "value": "unmodelled-bandit"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "unmodelled-bandit", "shards": []}]}]
    },
    "orphan-flag": {
      "key": "orphan-flag",
      "enabled": true,
      "variationType": "STRING",
      "variations": {"orphan-bandit": {"key": "orphan-bandit", "value": "orphan-bandit"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "orphan-bandit", "shards": []}]}]
    }
  },
  "bandits": {
    "banner-bandit": [
      {"key": "banner-bandit", "flagKey": "banner-flag", "variationKey": "banner-bandit", "variationValue": "banner-bandit"}
    ],
    "unmodelled-bandit": [
      {"key": "unmodelled-bandit", "flagKey": "unmodelled-flag", "variationKey": "unmodelled-bandit", "variationValue": "unmodelled-bandit"}
    ],
    "orphan-bandit": [
      {"key": "orphan-bandit", "flagKey": "orphan-flag", "variationKey": "orphan-bandit", "variationValue": "orphan-bandit"}
    ]
  }
}`

const Bandits = `{
  "updatedAt": "2024-04-17T19:40:53.716Z",
  "bandits": {
    "banner-bandit": {
      "banditKey": "banner-bandit",
      "modelName": "falcon",
      "modelVersion": "v123",
      "modelData": {
        "gamma": 1.0,
        "defaultActionScore": 0.0,
        "actionProbabilityFloor": 0.0,
        "coefficients": {
          "nike": {
            "actionKey": "nike",
            "intercept": 1.0,
            "subjectNumericCoefficients": [{"attributeKey": "age", "coefficient": 0.1, "missingValueCoefficient": 0.0}],
            "subjectCategoricalCoefficients": [],
            "actionNumericCoefficients": [],
            "actionCategoricalCoefficients": []
          },
          "adidas": {
            "actionKey": "adidas",
            "intercept": 0.5,
            "subjectNumericCoefficients": [],
            "subjectCategoricalCoefficients": [],
            "actionNumericCoefficients": [],
            "actionCategoricalCoefficients": []
          }
        }
      }
    },
    "unmodelled-bandit": {
      "banditKey": "unmodelled-bandit",
      "modelName": "falcon",
      "modelVersion": "v1",
      "modelData": null
    }
  }
}`

func loadConfiguration(t testing.TB, flags string) *store.Configuration {
	t.Helper()
	ufc, err := store.ParseUniversalFlagConfig([]byte(flags))
	require.NoError(t, err)
	bandits, err := store.ParseBanditResponse([]byte(Bandits))
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	return store.FromServerResponse(ufc, bandits, logger)
}

func renamed(flags, from, to string) string {
	return strings.ReplaceAll(flags, `"`+from+`"`, `"`+to+`"`)
}

func newTestEvaluator(opts ...Option) *Evaluator {
	return NewEvaluator(append([]Option{WithClock(func() time.Time { return FixedNow })}, opts...)...)
}
