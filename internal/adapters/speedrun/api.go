package speedrun

import "encoding/json"

// Response shapes of the speedrun.com REST API v1, reduced to the fields we read.

type envelope struct {
	Status  *int   `json:"status"`
	Message string `json:"message"`
}

type userResponse struct {
	Data struct {
		ID      string `json:"id"`
		Weblink string `json:"weblink"`
		Names   struct {
			International string `json:"international"`
			Japanese      string `json:"japanese"`
		} `json:"names"`
		Role string `json:"role"`
	} `json:"data"`
}

type runTimes struct {
	PrimaryT float64 `json:"primary_t"`
}

type personalBestsResponse struct {
	Data []struct {
		Place int `json:"place"`
		Run   struct {
			ID       string            `json:"id"`
			Game     string            `json:"game"`
			Category string            `json:"category"`
			Level    string            `json:"level"`
			Values   map[string]string `json:"values"`
			Times    runTimes          `json:"times"`
			Videos   *struct {
				Links []struct {
					URI string `json:"uri"`
				} `json:"links"`
			} `json:"videos"`
		} `json:"run"`
	} `json:"data"`
}

type variablesResponse struct {
	Data []struct {
		ID            string `json:"id"`
		IsSubcategory bool   `json:"is-subcategory"`
	} `json:"data"`
}

type levelsResponse struct {
	Data []json.RawMessage `json:"data"`
}

type leaderboardResponse struct {
	Data struct {
		Runs []struct {
			Place int `json:"place"`
			Run   struct {
				Times   runTimes `json:"times"`
				Players []struct {
					Rel string `json:"rel"`
					ID  string `json:"id"`
				} `json:"players"`
			} `json:"run"`
		} `json:"runs"`
		Players struct {
			Data []struct {
				ID   string `json:"id"`
				Role string `json:"role"`
			} `json:"data"`
		} `json:"players"`
	} `json:"data"`
}
