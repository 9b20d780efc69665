package service

const pricingSystemPrompt = `You are a marketplace pricing analyst. You answer with a single JSON value and nothing else. Prices are plain numbers without currency symbols. Do not invent brand facts you are unsure of.`

const suggestPromptTemplate = `Suggest up to 5 products a seller in the "%s" region could list alongside or instead of "%s".

Return a JSON object with exactly this shape:

{
  "suggestions": [
    {
      "name": "product name",
      "category": "short category",
      "suggestedPrice": 0,
      "currency": "ISO 4217 code used in the region",
      "reason": "one sentence on why it sells"
    }
  ]
}
%s`

const analyzePromptTemplate = `Analyze the current market price of "%s" in the "%s" region.

Return a JSON object with exactly these fields:

{
  "productName": "%s",
  "region": "%s",
  "currency": "ISO 4217 code used in the region",
  "suggestedPrice": 0,
  "minPrice": 0,
  "maxPrice": 0,
  "confidence": 0.0,
  "marketTrend": "rising|stable|falling",
  "reasoning": "2-3 sentences"
}

confidence is between 0 and 1.
%s`

const anchorHintTemplate = `
The seller's previous price was %.2f. Stay realistic relative to it.`
