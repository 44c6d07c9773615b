package main

import (
	"serverless-http-adapter/internal/config"
	"serverless-http-adapter/internal/framework"
	"serverless-http-adapter/pkg/lambda"

	_ "serverless-http-adapter/internal/apps"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

var rt *lambda.Runtime

func init() {
	logrus.SetFormatter(config.LogFormatter())

	var err error
	rt, err = lambda.GetOrCreate(config.LoadFromEnvironment,
		lambda.WithFrameworkResolver(framework.NewGinResolver(false)),
	)
	if err != nil {
		panic("Failed to bootstrap runtime: " + err.Error())
	}
}

func main() {
	awslambda.Start(rt.Handler())
}
