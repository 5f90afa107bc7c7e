// config/app.go
package config

type App struct {
	Port        string
	Env         string
	DatabaseURL string
	MongoURL    string
	MongoDBName string
	JWTSecret   string
	BotToken    string
}
