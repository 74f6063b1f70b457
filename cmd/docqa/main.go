// Package main 文档问答服务入口。
package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/docqa/cmd/docqa/app"
)

func main() {
	// .env 不存在时忽略，环境变量优先
	_ = godotenv.Load()
	app.NewApp().Run()
}
