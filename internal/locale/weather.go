package locale

import "strings"

var weatherLabelsJapanese = map[string]string{
	"clear":        "晴れ",
	"clouds":       "曇り",
	"rain":         "雨",
	"drizzle":      "霧雨",
	"thunderstorm": "雷雨",
	"snow":         "雪",
	"mist":         "霧",
	"smoke":        "煙",
	"haze":         "かすみ",
	"dust":         "ほこり",
	"fog":          "霧",
	"sand":         "砂",
	"ash":          "火山灰",
	"squall":       "スコール",
	"tornado":      "竜巻",
}

// WeatherLabel names an OpenWeatherMap condition group ("Clear", "Rain", ...).
// English falls back to the condition itself.
func WeatherLabel(language, condition string) string {
	key := strings.ToLower(strings.TrimSpace(condition))
	if NormalizeLanguage(language) == LanguageEnglish {
		if key == "" {
			return "Unknown"
		}
		return strings.ToUpper(key[:1]) + key[1:]
	}
	if label, ok := weatherLabelsJapanese[key]; ok {
		return label
	}
	return "不明"
}
