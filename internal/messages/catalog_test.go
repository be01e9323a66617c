package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadFromDir(".")
	require.NoError(t, err)

	t.Run("known key resolves", func(t *testing.T) {
		msg := catalog.Get("greeting.presentation")
		assert.Contains(t, msg, "Isso não é uma agência")
	})

	t.Run("missing key returns the key", func(t *testing.T) {
		assert.Equal(t, "nope.missing", catalog.Get("nope.missing"))
	})

	t.Run("render fills slots", func(t *testing.T) {
		msg := catalog.Render("lead.complete", map[string]string{"first_name": "Maria"})
		assert.Equal(t, "Perfeito, Maria! Tenho tudo que preciso. 🎉", msg)
	})

	t.Run("load accepts a directory override", func(t *testing.T) {
		overridden, err := Load(".")
		require.NoError(t, err)
		assert.Contains(t, overridden.Get("greeting.presentation"), "Isso não é uma agência")
	})

	t.Run("conversation keys present", func(t *testing.T) {
		required := []string{
			"greeting.presentation",
			"greeting.cancelled",
			"answering.permission_ask",
			"lead.ask_name",
			"lead.ask_email",
			"lead.ask_interest",
			"offer.question",
			"datetime.ask",
			"datetime.weekend",
			"datetime.out_of_hours",
			"datetime.past",
			"slot.alternatives",
			"slot.none_available",
			"appointment.confirmed",
			"appointment.rescheduled",
			"confirmation.farewell",
		}

		for _, key := range required {
			assert.NotEqual(t, key, catalog.Get(key), "missing catalog key %s", key)
		}
	})
}
